// Package cost estimates the spend of a run from its request and token
// counters.
package cost

import (
	"fmt"

	"github.com/sells-group/destination-cli/pkg/anthropic"
)

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	Places    PlacesRate           `yaml:"places" mapstructure:"places"`
	Geocode   map[string]float64   `yaml:"geocode" mapstructure:"geocode"` // per request, keyed by provider
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PlacesRate holds Google Places pricing per request.
type PlacesRate struct {
	TextSearch float64 `yaml:"text_search" mapstructure:"text_search"`
	Details    float64 `yaml:"details" mapstructure:"details"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Claude computes the cost of the given token usage on model. Unknown
// models cost nothing.
func (c *Calculator) Claude(model string, u anthropic.TokenUsage) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(u.InputTokens) / 1e6) * rate.Input
	outCost := (float64(u.OutputTokens) / 1e6) * rate.Output
	cwCost := (float64(u.CacheCreationInputTokens) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(u.CacheReadInputTokens) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// Places computes the cost of text searches and details calls.
func (c *Calculator) Places(textSearches, details int64) float64 {
	return float64(textSearches)*c.rates.Places.TextSearch + float64(details)*c.rates.Places.Details
}

// Geocode computes the cost of requests to a geocoding provider.
func (c *Calculator) Geocode(provider string, requests int64) float64 {
	return float64(requests) * c.rates.Geocode[provider]
}

// Estimate is a per-run spend breakdown in USD.
type Estimate struct {
	Places  float64
	Geocode float64
	Claude  float64
}

// Total sums the breakdown.
func (e Estimate) Total() float64 {
	return e.Places + e.Geocode + e.Claude
}

func (e Estimate) String() string {
	return fmt.Sprintf("$%.4f (places $%.4f, geocode $%.4f, claude $%.4f)",
		e.Total(), e.Places, e.Geocode, e.Claude)
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		Places: PlacesRate{TextSearch: 0.032, Details: 0.017},
		Geocode: map[string]float64{
			"google_geocode": 0.005,
			"nominatim":      0,
		},
	}
}
