package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/destination-cli/internal/batch"
	"github.com/sells-group/destination-cli/internal/enrich"
	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
	"github.com/sells-group/destination-cli/internal/store"
	"github.com/sells-group/destination-cli/pkg/geocode"
	"github.com/sells-group/destination-cli/pkg/google"
	"github.com/sells-group/destination-cli/pkg/google/mocks"
)

func writeWorkList(t *testing.T, body string) *store.WorkList {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return store.NewWorkList(path)
}

// nominatimServer answers every search with body and counts requests.
func nominatimServer(t *testing.T, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func geocodeChain(t *testing.T, baseURL string, cache *store.Typed[geocode.Result]) *geocode.Chain {
	t.Helper()
	precise := geocode.NewNominatimProvider(
		geocode.WithNominatimBaseURL(baseURL),
		geocode.WithNominatimLimiter(resilience.NewLimiter(0, nil)),
	)
	table := geocode.NewFallbackTable(map[string]model.Coordinates{
		"tokyo": {Lat: 35.6762, Long: 139.6503},
	})
	return geocode.NewChain(
		[]geocode.Resolver{precise, table, geocode.CityOnly(precise)},
		geocode.WithCache(cache),
	)
}

func TestSelect(t *testing.T) {
	now := time.Now()
	items := []model.Destination{
		{Slug: "a", Lat: 1, Long: 1},
		{Slug: "b"},
		{Slug: "c", LastEnrichedAt: &now},
		{Slug: "d"},
	}

	assert.Equal(t, []int{1, 2, 3}, Select(items, Selection{}, NeedsCoordinates))
	assert.Equal(t, []int{1}, Select(items, Selection{Limit: 1}, NeedsCoordinates))
	assert.Equal(t, []int{0, 1, 2, 3}, Select(items, Selection{All: true}, NeedsCoordinates))
	assert.Equal(t, []int{0, 1, 3}, Select(items, Selection{}, NeedsEnrichment))
	assert.Equal(t, []int{0}, Select(items, Selection{Slug: "a"}, NeedsCoordinates))
	assert.Empty(t, Select(items, Selection{Slug: "zzz"}, NeedsCoordinates))
}

func TestExecute_GeocodeFallsBackToCityTable(t *testing.T) {
	list := writeWorkList(t, `[{"slug":"tsukiji-sushi","name":"Tsukiji Sushi","city":"tokyo","lat":0,"long":0,"hero_image":"x.jpg"}]`)
	srv, hits := nominatimServer(t, `[]`)

	cacheDir := t.TempDir()
	fc, err := store.OpenFileCache(filepath.Join(cacheDir, "geocode.json"))
	require.NoError(t, err)
	cache := store.NewTyped[geocode.Result](fc)

	run := Run{
		Name:   "geocode",
		List:   list,
		Needs:  NeedsCoordinates,
		Batch:  batch.Config{Width: 5},
		Caches: []store.Flusher{fc},
	}
	summary, err := Execute(context.Background(), run, NewGeocodeJob(geocodeChain(t, srv.URL, cache)))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	// Specific query, then city-only is never reached because the table hit.
	assert.Equal(t, int64(1), hits.Load())

	items, err := list.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.Coordinates{Lat: 35.6762, Long: 139.6503}, items[0].Coordinates())
	raw, ok := items[0].Extra("hero_image")
	require.True(t, ok)
	assert.JSONEq(t, `"x.jpg"`, string(raw))

	// Cache persisted under the case-preserving identity.
	reopened, err := store.OpenFileCache(filepath.Join(cacheDir, "geocode.json"))
	require.NoError(t, err)
	n, err := reopened.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, ok, err = reopened.Get(context.Background(), "Tsukiji Sushi|tokyo")
	require.NoError(t, err)
	assert.True(t, ok)

	// Backup of the pre-run file exists.
	_, err = os.Stat(store.BackupPath(list.Path()))
	assert.NoError(t, err)

	// Re-running everything is served from the cache.
	run.Selection = Selection{All: true}
	summary, err = Execute(context.Background(), run, NewGeocodeJob(geocodeChain(t, srv.URL, cache)))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, int64(1), hits.Load())
}

func TestExecute_GeocodeMissAppliesSentinel(t *testing.T) {
	list := writeWorkList(t, `[{"slug":"x","name":"Nowhere Cafe","city":"Atlantis","lat":0,"long":0}]`)
	srv, hits := nominatimServer(t, `[{"lat":"0","lon":"0","display_name":"Null Island"}]`)

	fc, err := store.OpenFileCache(filepath.Join(t.TempDir(), "geocode.json"))
	require.NoError(t, err)

	summary, err := Execute(context.Background(), Run{
		Name:  "geocode",
		List:  list,
		Needs: NeedsCoordinates,
		Batch: batch.Config{Width: 1},
	}, NewGeocodeJob(geocodeChain(t, srv.URL, store.NewTyped[geocode.Result](fc))))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "Nowhere Cafe|Atlantis", summary.Failures[0].Key)
	// Specific and city-only both returned (0,0).
	assert.Equal(t, int64(2), hits.Load())

	n, err := fc.Len(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExecute_GeocodeMissKeepsExistingCoordinates(t *testing.T) {
	list := writeWorkList(t, `[{"slug":"x","name":"Harbour Bar","city":"Atlantis","lat":12.5,"long":45.25}]`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	fc, err := store.OpenFileCache(filepath.Join(t.TempDir(), "geocode.json"))
	require.NoError(t, err)

	summary, err := Execute(context.Background(), Run{
		Name:      "geocode",
		List:      list,
		Selection: Selection{All: true},
		Needs:     NeedsCoordinates,
		Batch:     batch.Config{Width: 1},
	}, NewGeocodeJob(geocodeChain(t, srv.URL, store.NewTyped[geocode.Result](fc))))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	items, err := list.Load()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.Coordinates{Lat: 12.5, Long: 45.25}, items[0].Coordinates())
}

func TestGeocodeJob_ApplyMiss(t *testing.T) {
	job := NewGeocodeJob(geocode.NewChain(nil))

	resolved := model.Destination{Name: "A", City: "B", Lat: 1.5, Long: -2.5}
	assert.Equal(t, model.OutcomeFailed, job.Apply(&resolved, geocode.Resolution{}))
	assert.Equal(t, model.Coordinates{Lat: 1.5, Long: -2.5}, resolved.Coordinates())

	pending := model.Destination{Name: "A", City: "B"}
	assert.Equal(t, model.OutcomeFailed, job.Apply(&pending, geocode.Resolution{}))
	assert.True(t, pending.NeedsCoordinates())
}

func TestExecute_NothingPending(t *testing.T) {
	list := writeWorkList(t, `[{"slug":"a","name":"A","city":"B","lat":1,"long":2}]`)

	summary, err := Execute(context.Background(), Run{Name: "geocode", List: list, Needs: NeedsCoordinates},
		NewGeocodeJob(geocode.NewChain(nil)))
	require.NoError(t, err)
	assert.Zero(t, summary.Total)

	_, err = os.Stat(store.BackupPath(list.Path()))
	assert.True(t, os.IsNotExist(err))
}

func TestExecute_Enrich(t *testing.T) {
	list := writeWorkList(t, `[
		{"slug":"le-bistro","name":"Le Bistro","city":"Paris","lat":0,"long":0},
		{"slug":"done","name":"Done","city":"Paris","lat":1,"long":1,"last_enriched_at":"2026-01-01T00:00:00Z"}
	]`)

	places := mocks.NewMockClient(t)
	places.On("TextSearch", mock.Anything, "Le Bistro, Paris").
		Return(&google.TextSearchResponse{Places: []google.Place{{ID: "p1"}}}, nil).Once()
	places.On("PlaceDetails", mock.Anything, "p1").Return(&google.Place{
		ID:       "p1",
		Types:    []string{"restaurant"},
		Location: &google.LatLng{Latitude: 48.86, Longitude: 2.35},
	}, nil).Once()

	clock := resilience.NewManualClock(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	summary, err := Execute(context.Background(), Run{
		Name:  "enrich",
		List:  list,
		Needs: NeedsEnrichment,
		Batch: batch.Config{Width: 2},
	}, NewEnrichJob(enrich.NewEnricher(places), clock))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)

	items, err := list.Load()
	require.NoError(t, err)
	assert.Equal(t, "p1", items[0].PlaceID)
	assert.Equal(t, enrich.CategoryRestaurants, items[0].Category)
	assert.Equal(t, model.Coordinates{Lat: 48.86, Long: 2.35}, items[0].Coordinates())
	require.NotNil(t, items[0].LastEnrichedAt)
	assert.True(t, items[0].LastEnrichedAt.Equal(clock.Now()))
}

func TestEnrichJob_ApplyMissLeavesItem(t *testing.T) {
	job := NewEnrichJob(nil, nil)
	d := model.Destination{Name: "x"}
	assert.Equal(t, model.OutcomeFailed, job.Apply(&d, &enrich.Result{}))
	assert.True(t, d.NeedsEnrichment())
}
