package model

import "fmt"

// IdentitySeparator joins name and city in a cache key.
const IdentitySeparator = "|"

// Coordinates is a latitude/longitude pair. The zero value is the
// "not yet resolved" sentinel.
type Coordinates struct {
	Lat  float64 `json:"lat" yaml:"lat"`
	Long float64 `json:"long" yaml:"long"`
}

// IsZero reports whether c is the (0,0) sentinel.
func (c Coordinates) IsZero() bool {
	return c.Lat == 0 && c.Long == 0
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Long)
}

// Identity addresses a cache entry. Key construction is case-preserving;
// callers normalize if they need to.
type Identity struct {
	Name string
	City string
}

// Key returns name + "|" + city.
func (i Identity) Key() string {
	return i.Name + IdentitySeparator + i.City
}
