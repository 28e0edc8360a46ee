package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupCaseInsensitive(t *testing.T) {
	l := NewLookup(map[string]any{
		"PROGRAM_NAME": "Martha's Table",
		"Address":      "629 Princess St",
	})

	assert.Equal(t, "Martha's Table", l.Text("program_name"))
	assert.Equal(t, "629 Princess St", l.Text("ADDRESS"))
	assert.Equal(t, "", l.Text("phone"))
}

func TestLookupPrecedence(t *testing.T) {
	props := map[string]any{"name": "From Properties"}
	top := map[string]any{"name": "From Envelope", "website": "https://example.org"}

	l := NewLookup(props, top)

	// Properties shadow the top-level envelope on collisions.
	assert.Equal(t, "From Properties", l.Text("name"))
	assert.Equal(t, "https://example.org", l.Text("website"))
}

func TestLookupFieldUsesRulesTable(t *testing.T) {
	tests := []struct {
		name     string
		record   map[string]any
		expected string
	}{
		{
			name:     "program_name wins over title",
			record:   map[string]any{"title": "Backup", "program_name": "Primary"},
			expected: "Primary",
		},
		{
			name:     "business_name as last candidate",
			record:   map[string]any{"business_name": "Corner Bakery"},
			expected: "Corner Bakery",
		},
		{
			name:     "empty values are skipped",
			record:   map[string]any{"name": "  ", "title": "Fallback Title"},
			expected: "Fallback Title",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLookup(tt.record)
			assert.Equal(t, tt.expected, l.Field(FieldName))
		})
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"nil", nil, ""},
		{"plain string", "  hello  ", "hello"},
		{"map with text key", map[string]any{"text": "Display Name"}, "Display Name"},
		{"map with value key", map[string]any{"value": "42 Main St"}, "42 Main St"},
		{"list joined", []any{"Mon 9-5", "Tue 9-5"}, "Mon 9-5; Tue 9-5"},
		{"list skips empties", []any{"", "Wed 10-4", nil}, "Wed 10-4"},
		{"number", 613, "613"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanText(tt.value))
		})
	}
}

func TestNormalizeHours(t *testing.T) {
	google := map[string]any{
		"weekdayDescriptions": []any{"Monday: 9AM-5PM", "Tuesday: 9AM-5PM"},
		"openNow":             true,
	}
	assert.Equal(t, "Monday: 9AM-5PM; Tuesday: 9AM-5PM", NormalizeHours(google))

	generic := map[string]any{"mon": "9-5", "tue": "closed"}
	assert.Equal(t, "mon: 9-5; tue: closed", NormalizeHours(generic))

	assert.Equal(t, "24/7", NormalizeHours("24/7"))
}
