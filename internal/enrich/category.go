package enrich

import (
	"strings"
)

// Category vocabulary. The tagger may only suggest one of these.
const (
	CategoryRestaurants = "Restaurants"
	CategoryCafes       = "Cafes"
	CategoryBars        = "Bars"
	CategoryHotels      = "Hotels"
	CategoryCulture     = "Culture"
	CategoryShopping    = "Shopping"
	CategoryNightlife   = "Nightlife"
	CategoryActivities  = "Activities"
	CategoryOther       = "Other"
)

// Vocabulary lists the categories in prompt order.
var Vocabulary = []string{
	CategoryRestaurants,
	CategoryCafes,
	CategoryBars,
	CategoryHotels,
	CategoryCulture,
	CategoryShopping,
	CategoryNightlife,
	CategoryActivities,
	CategoryOther,
}

// typeCategories maps Places types to a category.
var typeCategories = map[string]string{
	"restaurant":         CategoryRestaurants,
	"cafe":               CategoryCafes,
	"coffee_shop":        CategoryCafes,
	"bakery":             CategoryCafes,
	"bar":                CategoryBars,
	"night_club":         CategoryNightlife,
	"lodging":            CategoryHotels,
	"hotel":              CategoryHotels,
	"museum":             CategoryCulture,
	"art_gallery":        CategoryCulture,
	"shopping_mall":      CategoryShopping,
	"store":              CategoryShopping,
	"tourist_attraction": CategoryActivities,
	"park":               CategoryActivities,
}

// CanonicalCategory matches s against the vocabulary ignoring case.
func CanonicalCategory(s string) (string, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Vocabulary {
		if strings.EqualFold(c, s) {
			return c, true
		}
	}
	return "", false
}

// CategoryFromTypes returns the category of the first type that maps to
// one, or "" if none does.
func CategoryFromTypes(types []string) string {
	for _, t := range types {
		if c, ok := typeCategories[strings.ToLower(strings.TrimSpace(t))]; ok {
			return c
		}
	}
	return ""
}

// ResolveCategory picks the final category: a mapped place type beats a
// suggestion from the tagger, which beats whatever the record already had.
// Suggestions outside the vocabulary are ignored.
func ResolveCategory(typesCategory, suggested, existing string) string {
	if c, ok := CanonicalCategory(typesCategory); ok {
		return c
	}
	if c, ok := CanonicalCategory(suggested); ok {
		return c
	}
	return existing
}
