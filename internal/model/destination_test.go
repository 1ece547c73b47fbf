package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestination_PreservesUnknownFields(t *testing.T) {
	t.Parallel()

	in := `{"slug":"aman","name":"Aman Tokyo","city":"tokyo","lat":0,"long":0,"image":"a.jpg","crown":true,"category":"Hotels"}`

	var d Destination
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.Equal(t, "Aman Tokyo", d.Name)
	assert.Equal(t, "Hotels", d.Category)

	img, ok := d.Extra("image")
	require.True(t, ok)
	assert.JSONEq(t, `"a.jpg"`, string(img))
	_, ok = d.Extra("name")
	assert.False(t, ok, "owned fields are not extras")

	d.SetCoordinates(Coordinates{Lat: 35.68, Long: 139.76})
	out, err := json.Marshal(d)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(out, &generic))
	assert.Equal(t, "a.jpg", generic["image"])
	assert.Equal(t, true, generic["crown"])
	assert.Equal(t, 35.68, generic["lat"])
	assert.Equal(t, 139.76, generic["long"])
}

func TestDestination_MarshalOmitsEmptyEnrichment(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal(Destination{Slug: "x", Name: "X", City: "y"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"slug":"x","name":"X","city":"y","lat":0,"long":0}`, string(out))
}

func TestDestination_OwnedFieldWinsOverExtra(t *testing.T) {
	t.Parallel()

	var d Destination
	require.NoError(t, json.Unmarshal([]byte(`{"slug":"s","name":"n","city":"c","lat":1,"long":2,"other":1}`), &d))
	d.Lat = 5

	out, err := json.Marshal(&d)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"lat":5`)
}

func TestDestination_Needs(t *testing.T) {
	t.Parallel()

	d := Destination{Name: "n", City: "c"}
	assert.True(t, d.NeedsCoordinates())
	assert.True(t, d.NeedsEnrichment())

	d.Lat = 0.0001
	assert.False(t, d.NeedsCoordinates(), "one non-zero coordinate is resolved")

	now := time.Now()
	d.LastEnrichedAt = &now
	assert.False(t, d.NeedsEnrichment())
}

func TestIdentity_Key(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   Identity
		want string
	}{
		{Identity{Name: "Tsukiji Sushi", City: "tokyo"}, "Tsukiji Sushi|tokyo"},
		{Identity{Name: "", City: "Paris"}, "|Paris"},
		{Identity{Name: "Café", City: "Lyon"}, "Café|Lyon"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.id.Key())
		})
	}

	d := Destination{Name: "Tsukiji Sushi", City: "tokyo"}
	assert.Equal(t, "Tsukiji Sushi|tokyo", d.Identity().Key())
}

func TestCoordinates_IsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, Coordinates{}.IsZero())
	assert.False(t, Coordinates{Lat: 0, Long: 1}.IsZero())
	assert.False(t, Coordinates{Lat: -33.86, Long: 151.2}.IsZero())
	assert.Equal(t, "35.676200,139.650300", Coordinates{Lat: 35.6762, Long: 139.6503}.String())
}

func TestRunSummary_Record(t *testing.T) {
	t.Parallel()

	s := RunSummary{Total: 5}
	s.Record(OutcomeResolved)
	s.Record(OutcomeCached)
	s.Record(OutcomeFailed)

	assert.Equal(t, 3, s.Processed)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Cached)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Remaining())
	assert.Equal(t, "complete: total=5 processed=3 updated=2 failed=1 cached=1", s.String())

	s.Partial = true
	assert.Contains(t, s.String(), "partial")
}

func TestOutcome_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "resolved", OutcomeResolved.String())
	assert.Equal(t, "cached", OutcomeCached.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
