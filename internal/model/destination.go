package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"
)

// Destination is a place record moving through the geocode and enrich jobs.
// Fields the pipeline does not own are kept in extra and written back
// unchanged, so rewriting the work list never drops data.
type Destination struct {
	Slug     string  `json:"slug"`
	Name     string  `json:"name"`
	City     string  `json:"city"`
	Category string  `json:"category,omitempty"`
	Content  string  `json:"content,omitempty"`
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`

	PlaceID          string          `json:"place_id,omitempty"`
	FormattedAddress string          `json:"formatted_address,omitempty"`
	PhoneNumber      string          `json:"phone_number,omitempty"`
	Website          string          `json:"website,omitempty"`
	GoogleMapsURL    string          `json:"google_maps_url,omitempty"`
	Rating           *float64        `json:"rating,omitempty"`
	UserRatingsTotal *int            `json:"user_ratings_total,omitempty"`
	PriceLevel       *int            `json:"price_level,omitempty"`
	OpeningHours     json.RawMessage `json:"opening_hours,omitempty"`
	EditorialSummary string          `json:"editorial_summary,omitempty"`
	Description      string          `json:"description,omitempty"` // five-word tagline
	GoogleTypes      []string        `json:"google_types,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	LastEnrichedAt   *time.Time      `json:"last_enriched_at,omitempty"`

	extra map[string]json.RawMessage
}

// destinationFields is an alias without methods so the custom codec can
// delegate to encoding/json without recursing.
type destinationFields Destination

var (
	knownKeysOnce sync.Once
	knownKeys     map[string]struct{}
)

func destinationKeys() map[string]struct{} {
	knownKeysOnce.Do(func() {
		knownKeys = make(map[string]struct{})
		t := reflect.TypeOf(Destination{})
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			name, _, _ := strings.Cut(tag, ",")
			knownKeys[name] = struct{}{}
		}
	})
	return knownKeys
}

// UnmarshalJSON decodes the owned fields and stashes everything else.
func (d *Destination) UnmarshalJSON(data []byte) error {
	var fields destinationFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	known := destinationKeys()
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}

	*d = Destination(fields)
	d.extra = extra
	return nil
}

// MarshalJSON encodes the owned fields merged with any preserved extras.
func (d Destination) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(destinationFields(d))
	if err != nil {
		return nil, err
	}
	if len(d.extra) == 0 {
		return data, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range d.extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Extra returns the raw value of a field the pipeline does not own.
func (d *Destination) Extra(key string) (json.RawMessage, bool) {
	v, ok := d.extra[key]
	return v, ok
}

// Identity returns the cache identity of the destination.
func (d *Destination) Identity() Identity {
	return Identity{Name: d.Name, City: d.City}
}

// Coordinates returns the current coordinate pair.
func (d *Destination) Coordinates() Coordinates {
	return Coordinates{Lat: d.Lat, Long: d.Long}
}

// SetCoordinates overwrites the coordinate pair.
func (d *Destination) SetCoordinates(c Coordinates) {
	d.Lat = c.Lat
	d.Long = c.Long
}

// NeedsCoordinates reports whether the destination still holds the
// unresolved sentinel.
func (d *Destination) NeedsCoordinates() bool {
	return d.Coordinates().IsZero()
}

// NeedsEnrichment reports whether the enrich job has never touched it.
func (d *Destination) NeedsEnrichment() bool {
	return d.LastEnrichedAt == nil
}
