package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-caremap/caremap/internal/model"
)

const runTS = "2025-06-01T00:00:00Z"

func TestParseRecordGeoJSONFeature(t *testing.T) {
	raw := map[string]any{
		"type": "Feature",
		"properties": map[string]any{
			"PROGRAM_NAME": "Community Kitchen",
			"TYPE":         "Meal Program",
			"ADDRESS":      "85 Queen St",
			"PHONE_NUM":    "613-555-0100",
			"COMPILE_WHEN": float64(1700000000000),
		},
		"geometry": map[string]any{
			"type":        "Point",
			"coordinates": []any{-76.4860, 44.2312},
		},
	}

	place, reason := ParseRecord(raw, runTS)
	require.Empty(t, reason)
	require.NotNil(t, place)

	assert.Equal(t, "Community Kitchen", place.Name)
	assert.Equal(t, "meals", place.Category, "service TYPE maps to its canonical id")
	assert.Equal(t, "85 Queen St", place.Address)
	assert.Equal(t, "613-555-0100", place.Phone)
	assert.InDelta(t, 44.2312, *place.Latitude, 1e-9)
	assert.InDelta(t, -76.4860, *place.Longitude, 1e-9)
	assert.Equal(t, "2023-11-14T22:13:20Z", place.LastVerified)
	assert.NotEmpty(t, place.SourceKey)
}

func TestParseRecordGooglePlace(t *testing.T) {
	raw := map[string]any{
		"id":               "ChIJexample",
		"displayName":      map[string]any{"text": "Riverside Diner"},
		"formattedAddress": "100 Ontario St, Kingston",
		"primaryType":      "diner",
		"location":         map[string]any{"latitude": 44.2299, "longitude": -76.4811},
		"regularOpeningHours": map[string]any{
			"weekdayDescriptions": []any{"Daily: 7AM-9PM"},
		},
	}

	place, reason := ParseRecord(raw, runTS)
	require.Empty(t, reason)

	assert.Equal(t, "Riverside Diner", place.Name)
	assert.Equal(t, "Restaurant", place.Category, "food businesses are re-bucketed")
	assert.Equal(t, "100 Ontario St, Kingston", place.Address)
	assert.Equal(t, "Daily: 7AM-9PM", place.Hours)
	assert.Equal(t, "ChIJexample", place.ExternalID)
	assert.Equal(t, runTS, place.LastVerified, "no upstream timestamp uses run time")
}

func TestParseRecordRejections(t *testing.T) {
	tests := []struct {
		name   string
		raw    any
		reason string
	}{
		{
			name:   "not a dict",
			raw:    "just a string",
			reason: model.SkipNotADict,
		},
		{
			name: "missing address",
			raw: map[string]any{
				"name":     "No Address",
				"latitude": 44.2, "longitude": -76.5,
			},
			reason: model.SkipMissingRequiredFields,
		},
		{
			name: "missing coordinates",
			raw: map[string]any{
				"name":    "No Coords",
				"address": "123 Nowhere Rd",
			},
			reason: model.SkipMissingRequiredFields,
		},
		{
			name: "missing name",
			raw: map[string]any{
				"address":  "45 Division St",
				"latitude": 44.2, "longitude": -76.5,
			},
			reason: model.SkipMissingRequiredFields,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			place, reason := ParseRecord(tt.raw, runTS)
			assert.Nil(t, place)
			assert.Equal(t, tt.reason, reason)
		})
	}
}

func TestParseRecordMissingCategoryIsNotRejected(t *testing.T) {
	raw := map[string]any{
		"name":     "Mystery Spot",
		"address":  "9 Somewhere Ave",
		"latitude": 44.21, "longitude": -76.49,
	}
	place, reason := ParseRecord(raw, runTS)
	require.Empty(t, reason)
	assert.Equal(t, model.FallbackCategory, place.Category)
}

func TestRecords(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		expected int
	}{
		{"top-level array", []any{map[string]any{}, map[string]any{}}, 2},
		{"features key", map[string]any{"features": []any{map[string]any{}}}, 1},
		{"items key", map[string]any{"items": []any{1, 2, 3}}, 3},
		{"places key", map[string]any{"places": []any{1}}, 1},
		{"data key", map[string]any{"data": []any{1, 2}}, 2},
		{"no list key", map[string]any{"stuff": "nope"}, 0},
		{"scalar", 42, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Records(tt.data), tt.expected)
		})
	}
}
