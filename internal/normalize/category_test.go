package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kingston-caremap/caremap/internal/model"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		name     string
		category string
		typesRaw any
		expected string
	}{
		{
			name:     "restaurant token in category text",
			category: "Pizza Place",
			expected: "Restaurant",
		},
		{
			name:     "restaurant token in types list",
			category: "Food Business",
			typesRaw: []any{"meal_takeaway", "bbq_joint"},
			expected: "Restaurant",
		},
		{
			name:     "token split on underscores and slashes",
			category: "fast_food/diner",
			expected: "Restaurant",
		},
		{
			name:     "non-food category passes through verbatim",
			category: "Emergency Shelter",
			expected: "Emergency Shelter",
		},
		{
			name:     "empty category falls back",
			category: "",
			expected: model.FallbackCategory,
		},
		{
			name:     "bar token forces restaurant",
			category: "Neighbourhood Bar",
			expected: "Restaurant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCategory(tt.category, tt.typesRaw))
		})
	}
}

func TestResolveCategory(t *testing.T) {
	tests := []struct {
		name     string
		props    map[string]any
		expected string
	}{
		{
			name:     "known service type maps to canonical id",
			props:    map[string]any{"TYPE": "Emergency Shelter", "name": "x"},
			expected: "shelter",
		},
		{
			name:     "unknown service type falls back to other",
			props:    map[string]any{"TYPE": "Unknown Thing"},
			expected: "other",
		},
		{
			name:     "free-form category passes through verbatim",
			props:    map[string]any{"category": "Community Garden"},
			expected: "Community Garden",
		},
		{
			name:     "restaurant override beats the type table",
			props:    map[string]any{"TYPE": "Meal Program", "types": []any{"restaurant"}},
			expected: "Restaurant",
		},
		{
			name:     "no category at all",
			props:    map[string]any{"name": "x"},
			expected: model.FallbackCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLookup(tt.props, nil)
			assert.Equal(t, tt.expected, ResolveCategory(l))
		})
	}
}

func TestMapServiceType(t *testing.T) {
	tests := []struct {
		rawType  string
		expected string
	}{
		{"Meal Program", "meals"},
		{"Food Bank", "meals"},
		{"Emergency Shelter", "shelter"},
		{"Youth Shelter", "shelter"},
		{"Drop-In Centre", "dropin"},
		{"Housing Services", "housing"},
		{"Health Service", "health"},
		{"Warm Up / Cool Down Location", "warming"},
		{"Shower", "washroom"},
		{"Street Outreach", "other"},
		{"Unknown Thing", "other"},
		{"", "other"},
		{"  Meal Program  ", "meals"},
	}

	for _, tt := range tests {
		t.Run(tt.rawType, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapServiceType(tt.rawType))
		})
	}
}
