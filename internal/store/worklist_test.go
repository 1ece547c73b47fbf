package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/destination-cli/internal/model"
	"github.com/sells-group/destination-cli/internal/resilience"
)

const sampleWorkList = `[
  {"slug": "tsukiji-sushi", "name": "Tsukiji Sushi", "city": "tokyo", "lat": 0, "long": 0, "michelin_stars": 2},
  {"slug": "le-cafe", "name": "Le Cafe", "city": "paris", "lat": 48.85, "long": 2.35}
]`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleWorkList), 0o644))
	return path
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/data/destinations_backup.json", BackupPath("/data/destinations.json"))
	assert.Equal(t, "list_backup", BackupPath("list"))
}

func TestWorkList_LoadSavePreservesUnknownFields(t *testing.T) {
	path := writeSample(t)
	wl := NewWorkList(path)

	items, err := wl.Load()
	require.NoError(t, err)
	require.Len(t, items, 2)

	items[0].SetCoordinates(model.Coordinates{Lat: 35.6762, Long: 139.6503})
	require.NoError(t, wl.Save(items))

	reloaded, err := wl.Load()
	require.NoError(t, err)
	assert.Equal(t, 35.6762, reloaded[0].Lat)
	stars, ok := reloaded[0].Extra("michelin_stars")
	require.True(t, ok)
	assert.JSONEq(t, "2", string(stars))
}

func TestWorkList_BackupOnce(t *testing.T) {
	path := writeSample(t)
	wl := NewWorkList(path)

	items, err := wl.Load()
	require.NoError(t, err)

	items[0].Lat = 1
	require.NoError(t, wl.Save(items))
	items[0].Lat = 2
	require.NoError(t, wl.Save(items))

	backup, err := os.ReadFile(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, sampleWorkList, string(backup))

	// A later process must not overwrite an existing backup.
	wl2 := NewWorkList(path)
	items[0].Lat = 3
	require.NoError(t, wl2.Save(items))

	backup, err = os.ReadFile(BackupPath(path))
	require.NoError(t, err)
	assert.Equal(t, sampleWorkList, string(backup))
}

func TestWorkList_LoadErrors(t *testing.T) {
	_, err := NewWorkList(filepath.Join(t.TempDir(), "missing.json")).Load()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))
	_, err = NewWorkList(path).Load()
	assert.Error(t, err)
}

type flakyFlusher struct {
	failures int
	calls    int
}

func (f *flakyFlusher) Flush(context.Context) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("disk hiccup")
	}
	return nil
}

func noSleepRetry() resilience.RetryConfig {
	cfg := resilience.PersistRetryConfig()
	cfg.Clock = resilience.NewManualClock(resilience.RealClock.Now())
	return cfg
}

func TestCheckpointer_RetriesOnce(t *testing.T) {
	path := writeSample(t)
	wl := NewWorkList(path)
	items, err := wl.Load()
	require.NoError(t, err)

	flaky := &flakyFlusher{failures: 1}
	cp := NewCheckpointer(wl, items, flaky).WithRetry(noSleepRetry())

	require.NoError(t, cp.Checkpoint(context.Background()))
	assert.Equal(t, 2, flaky.calls)
	assert.Equal(t, 1, cp.Saves())
}

func TestCheckpointer_SurfacesPersistError(t *testing.T) {
	flaky := &flakyFlusher{failures: 5}
	cp := NewCheckpointer(nil, nil, flaky).WithRetry(noSleepRetry())

	err := cp.Checkpoint(context.Background())
	require.Error(t, err)
	assert.True(t, resilience.IsPersistence(err))
	assert.Equal(t, 2, flaky.calls)
}

func TestCheckpointer_RunsAfterCancel(t *testing.T) {
	path := writeSample(t)
	wl := NewWorkList(path)
	items, err := wl.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items[1].Lat = 10
	require.NoError(t, NewCheckpointer(wl, items).Checkpoint(ctx))

	reloaded, err := wl.Load()
	require.NoError(t, err)
	assert.Equal(t, 10.0, reloaded[1].Lat)
}
