package enrich

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/pkg/google"
)

// Record is the cached enrichment payload for one identity.
type Record struct {
	PlaceID           string             `json:"place_id,omitempty"`
	FormattedAddress  string             `json:"formatted_address,omitempty"`
	Phone             string             `json:"phone,omitempty"`
	Website           string             `json:"website,omitempty"`
	MapsURL           string             `json:"maps_url,omitempty"`
	Rating            *float64           `json:"rating,omitempty"`
	UserRatingsTotal  *int               `json:"user_ratings_total,omitempty"`
	PriceLevel        *int               `json:"price_level,omitempty"`
	OpeningHours      json.RawMessage    `json:"opening_hours,omitempty"`
	EditorialSummary  string             `json:"editorial_summary,omitempty"`
	GoogleTypes       []string           `json:"google_types,omitempty"`
	Location          *model.Coordinates `json:"location,omitempty"`
	Tags              []string           `json:"tags,omitempty"`
	SuggestedCategory string             `json:"suggested_category,omitempty"`
	Tagline           string             `json:"tagline,omitempty"`
	Category          string             `json:"category,omitempty"`
}

// Found reports whether the record carries anything worth keeping.
func (r *Record) Found() bool {
	return r.PlaceID != "" || len(r.Tags) > 0
}

// fillFromPlace copies the details of p. Zero values from the API are
// treated as absent.
func (r *Record) fillFromPlace(p *google.Place) {
	if p == nil {
		return
	}
	if p.ID != "" {
		r.PlaceID = p.ID
	}
	r.FormattedAddress = p.FormattedAddress
	r.Phone = p.InternationalPhoneNumber
	r.Website = p.WebsiteURI
	r.MapsURL = p.GoogleMapsURI
	r.EditorialSummary = p.EditorialSummary.Text
	r.GoogleTypes = p.Types

	if p.Rating > 0 {
		rating := p.Rating
		r.Rating = &rating
	}
	if p.UserRatingCount > 0 {
		n := p.UserRatingCount
		r.UserRatingsTotal = &n
	}
	if tier := google.PriceTier(p.PriceLevel); tier > 0 {
		r.PriceLevel = &tier
	}
	if len(p.RegularOpeningHours) > 0 {
		r.OpeningHours = json.RawMessage(p.RegularOpeningHours)
	}
	if p.Location != nil {
		c := model.Coordinates{Lat: p.Location.Latitude, Long: p.Location.Longitude}
		if !c.IsZero() {
			r.Location = &c
		}
	}
}

// Apply writes the record onto d. Empty record fields never erase existing
// data, and a tagline only fills an empty description.
func (r *Record) Apply(d *model.Destination, now time.Time) {
	setString(&d.PlaceID, r.PlaceID)
	setString(&d.FormattedAddress, r.FormattedAddress)
	setString(&d.PhoneNumber, r.Phone)
	setString(&d.Website, r.Website)
	setString(&d.GoogleMapsURL, r.MapsURL)
	setString(&d.EditorialSummary, r.EditorialSummary)
	setString(&d.Category, r.Category)

	if r.Rating != nil {
		d.Rating = r.Rating
	}
	if r.UserRatingsTotal != nil {
		d.UserRatingsTotal = r.UserRatingsTotal
	}
	if r.PriceLevel != nil {
		d.PriceLevel = r.PriceLevel
	}
	if len(r.OpeningHours) > 0 {
		d.OpeningHours = append([]byte(nil), r.OpeningHours...)
	}
	if len(r.GoogleTypes) > 0 {
		d.GoogleTypes = r.GoogleTypes
	}
	if len(r.Tags) > 0 {
		d.Tags = r.Tags
	}
	if d.Description == "" && r.Tagline != "" {
		d.Description = r.Tagline
	}
	if r.Location != nil && d.NeedsCoordinates() {
		d.SetCoordinates(*r.Location)
	}

	ts := now.UTC()
	d.LastEnrichedAt = &ts
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
