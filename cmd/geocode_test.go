package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/store"
)

func writeList(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// emptySearch answers every geocode request with no results.
func emptySearch(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

const sampleList = `[
  {"slug":"tsukiji-sushi","name":"Tsukiji Sushi","city":"tokyo","lat":0,"long":0},
  {"slug":"nowhere","name":"Nowhere Cafe","city":"Atlantis","lat":0,"long":0},
  {"slug":"done","name":"Done","city":"Paris","lat":48.85,"long":2.35}
]`

func TestRunGeocode(t *testing.T) {
	srv, hits := emptySearch(t)
	c := testConfig(t)
	c.Geocode.BaseURL = srv.URL
	path := writeList(t, sampleList)

	summary, err := runGeocode(context.Background(), c, path, geocodeOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Partial)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "Nowhere Cafe|Atlantis", summary.Failures[0].Key)
	// Tsukiji: precise only. Atlantis: precise then city-only.
	assert.Equal(t, int64(3), hits.Load())

	items, err := store.NewWorkList(path).Load()
	require.NoError(t, err)
	assert.Equal(t, model.Coordinates{Lat: 35.6762, Long: 139.6503}, items[0].Coordinates())
	assert.True(t, items[1].NeedsCoordinates())
	assert.Equal(t, model.Coordinates{Lat: 48.85, Long: 2.35}, items[2].Coordinates())

	var out bytes.Buffer
	require.NoError(t, runCacheStats(context.Background(), c, &out))
	assert.Contains(t, out.String(), geocodeNamespace)
	assert.Contains(t, out.String(), " 1 entries")

	// The resolved item is no longer pending; the miss is retried.
	summary, err = runGeocode(context.Background(), c, path, geocodeOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, int64(5), hits.Load())
}

func TestRunGeocode_SlugServedFromCache(t *testing.T) {
	srv, hits := emptySearch(t)
	c := testConfig(t)
	c.Geocode.BaseURL = srv.URL
	path := writeList(t, sampleList)

	_, err := runGeocode(context.Background(), c, path, geocodeOptions{}, nil)
	require.NoError(t, err)
	before := hits.Load()

	opts := geocodeOptions{runFlags: runFlags{slug: "tsukiji-sushi"}}
	summary, err := runGeocode(context.Background(), c, path, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, before, hits.Load())
}

func TestRunGeocode_UnknownProvider(t *testing.T) {
	c := testConfig(t)
	_, err := runGeocode(context.Background(), c, writeList(t, `[]`), geocodeOptions{provider: "bing"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestRunGeocode_GoogleNeedsKey(t *testing.T) {
	c := testConfig(t)
	c.Geocode.Provider = "google"
	_, err := runGeocode(context.Background(), c, writeList(t, `[]`), geocodeOptions{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google_key")
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, "geocode", model.RunSummary{
		Total:      3,
		Processed:  1,
		Succeeded:  1,
		Partial:    true,
		StopReason: "quota_exceeded",
		Failures:   []model.Failure{{Key: "a|b"}, {Key: "c|d", Error: "boom", ErrorType: "permanent"}},
	})

	out := buf.String()
	assert.Contains(t, out, "geocode partial: total=3 processed=1 updated=1 failed=0 cached=0")
	assert.Contains(t, out, "stopped: quota_exceeded, 2 item(s) remaining")
	assert.Contains(t, out, "failed: a|b\n")
	assert.Contains(t, out, "failed: c|d (permanent: boom)")
}
