package geocode

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/destination-cli/internal/model"
)

// builtinCities is the default city table. Hyphenated spellings appear
// because slugs in the work list use them.
var builtinCities = map[string]model.Coordinates{
	"taipei":        {Lat: 25.0330, Long: 121.5654},
	"taichung":      {Lat: 24.1477, Long: 120.6736},
	"tainan":        {Lat: 22.9997, Long: 120.2270},
	"kaohsiung":     {Lat: 22.6273, Long: 120.3014},
	"tokyo":         {Lat: 35.6762, Long: 139.6503},
	"osaka":         {Lat: 34.6937, Long: 135.5023},
	"kyoto":         {Lat: 35.0116, Long: 135.7681},
	"kobe":          {Lat: 34.6901, Long: 135.1955},
	"nara":          {Lat: 34.6851, Long: 135.8048},
	"hiroshima":     {Lat: 34.3853, Long: 132.4553},
	"new york":      {Lat: 40.7128, Long: -74.0060},
	"new-york":      {Lat: 40.7128, Long: -74.0060},
	"los angeles":   {Lat: 34.0522, Long: -118.2437},
	"chicago":       {Lat: 41.8781, Long: -87.6298},
	"miami":         {Lat: 25.7617, Long: -80.1918},
	"washington dc": {Lat: 38.9072, Long: -77.0369},
	"washington-dc": {Lat: 38.9072, Long: -77.0369},
	"london":        {Lat: 51.5074, Long: -0.1278},
	"paris":         {Lat: 48.8566, Long: 2.3522},
	"milan":         {Lat: 45.4642, Long: 9.1900},
	"rome":          {Lat: 41.9028, Long: 12.4964},
	"venice":        {Lat: 45.4408, Long: 12.3155},
	"singapore":     {Lat: 1.3521, Long: 103.8198},
	"hong kong":     {Lat: 22.3193, Long: 114.1694},
	"bangkok":       {Lat: 13.7563, Long: 100.5018},
	"saigon":        {Lat: 10.8231, Long: 106.6297},
	"sydney":        {Lat: -33.8688, Long: 151.2093},
	"melbourne":     {Lat: -37.8136, Long: 144.9631},
	"hawaii":        {Lat: 21.3099, Long: -157.8581},
	"colorado":      {Lat: 39.5501, Long: -105.7821},
	"lisbon":        {Lat: 38.7223, Long: -9.1393},
	"barcelona":     {Lat: 41.3851, Long: 2.1734},
	"madrid":        {Lat: 40.4168, Long: -3.7038},
	"amsterdam":     {Lat: 52.3676, Long: 4.9041},
	"berlin":        {Lat: 52.5200, Long: 13.4050},
	"vienna":        {Lat: 48.2082, Long: 16.3738},
	"prague":        {Lat: 50.0755, Long: 14.4378},
	"copenhagen":    {Lat: 55.6761, Long: 12.5683},
	"stockholm":     {Lat: 59.3293, Long: 18.0686},
	"dubai":         {Lat: 25.2048, Long: 55.2708},
	"seoul":         {Lat: 37.5665, Long: 126.9780},
	"shanghai":      {Lat: 31.2304, Long: 121.4737},
	"beijing":       {Lat: 39.9042, Long: 116.4074},
	"da-nang":       {Lat: 16.0544, Long: 108.2022},
	"hanoi":         {Lat: 21.0285, Long: 105.8542},
	"kuala-lumpur":  {Lat: 3.1390, Long: 101.6869},
	"jakarta":       {Lat: -6.2088, Long: 106.8456},
	"manila":        {Lat: 14.5995, Long: 120.9842},
}

// FallbackTable maps a city name to its center coordinates. Lookups are
// case-insensitive and ignore surrounding whitespace. It is read-only after
// construction.
type FallbackTable struct {
	entries map[string]model.Coordinates
}

// NewFallbackTable builds a table from entries, folding keys.
func NewFallbackTable(entries map[string]model.Coordinates) *FallbackTable {
	t := &FallbackTable{entries: make(map[string]model.Coordinates, len(entries))}
	for city, c := range entries {
		t.entries[foldCity(city)] = c
	}
	return t
}

// DefaultFallbackTable returns the built-in table merged with overrides.
// Override entries replace built-in ones for the same city.
func DefaultFallbackTable(overrides map[string]model.Coordinates) *FallbackTable {
	t := NewFallbackTable(builtinCities)
	for city, c := range overrides {
		t.entries[foldCity(city)] = c
	}
	return t
}

// foldCity normalizes a city for lookup. A new Caser per call: Casers are
// not safe for concurrent use.
func foldCity(city string) string {
	return cases.Fold().String(strings.TrimSpace(city))
}

// Lookup returns the coordinates for city.
func (t *FallbackTable) Lookup(city string) (model.Coordinates, bool) {
	c, ok := t.entries[foldCity(city)]
	return c, ok
}

// Len returns the number of cities.
func (t *FallbackTable) Len() int { return len(t.entries) }

// Name implements Resolver.
func (t *FallbackTable) Name() string { return "fallback_table" }

// Resolve implements Resolver. It never makes a network call and never errors.
func (t *FallbackTable) Resolve(_ context.Context, id model.Identity) (*Result, error) {
	c, ok := t.Lookup(id.City)
	if !ok || c.IsZero() {
		return nil, nil
	}
	return &Result{
		Lat:     c.Lat,
		Long:    c.Long,
		Source:  t.Name(),
		Quality: QualityCityTable,
	}, nil
}

// fallbackFile is the YAML layout of an override file:
//
//	cities:
//	  tokyo: {lat: 35.6762, long: 139.6503}
type fallbackFile struct {
	Cities map[string]model.Coordinates `yaml:"cities"`
}

// LoadFallbackFile reads city overrides from a YAML file.
func LoadFallbackFile(path string) (map[string]model.Coordinates, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geocode: read fallback file %s", path)
	}

	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "geocode: parse fallback file %s", path)
	}
	for city, c := range f.Cities {
		if c.Lat < -90 || c.Lat > 90 || c.Long < -180 || c.Long > 180 {
			return nil, eris.Errorf("geocode: fallback city %q out of range (%v)", city, c)
		}
	}
	return f.Cities, nil
}
