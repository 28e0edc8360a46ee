package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const fallbackTS = "2025-06-01T00:00:00Z"

func TestNormalizeTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil falls back", nil, fallbackTS},
		{"epoch seconds", float64(1700000000), "2023-11-14T22:13:20Z"},
		{"epoch milliseconds", float64(1700000000000), "2023-11-14T22:13:20Z"},
		{"iso with Z", "2024-03-01T12:00:00Z", "2024-03-01T12:00:00Z"},
		{"iso without zone", "2024-03-01T12:00:00", "2024-03-01T12:00:00Z"},
		{"date only", "2024-03-01", "2024-03-01T00:00:00Z"},
		{"garbage falls back", "sometime last week", fallbackTS},
		{"blank falls back", "   ", fallbackTS},
		{"negative epoch falls back", float64(-5), fallbackTS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeTimestamp(tt.value, fallbackTS))
		})
	}
}

func TestParseISO(t *testing.T) {
	got, ok := ParseISO("2025-01-01T20:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, 20, got.UTC().Hour())

	_, ok = ParseISO("not a timestamp")
	assert.False(t, ok)
}
