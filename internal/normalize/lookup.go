package normalize

import (
	"fmt"
	"sort"
	"strings"
)

// Lookup provides case-insensitive field resolution across one or more
// record maps. Earlier sources shadow later ones when keys collide, so a
// feature's properties take precedence over its top-level envelope.
type Lookup struct {
	values map[string]any
}

// NewLookup merges the given maps into a case-insensitive view.
func NewLookup(sources ...map[string]any) *Lookup {
	values := make(map[string]any)
	for _, src := range sources {
		for key, val := range src {
			lk := strings.ToLower(key)
			if _, exists := values[lk]; !exists {
				values[lk] = val
			}
		}
	}
	return &Lookup{values: values}
}

// Field resolves a canonical field via the rules table, returning the first
// candidate key's non-empty text.
func (l *Lookup) Field(field string) string {
	return l.Text(CandidateKeys(field)...)
}

// Text returns the first non-empty cleaned text value among the given keys.
func (l *Lookup) Text(keys ...string) string {
	for _, key := range keys {
		if text := CleanText(l.values[strings.ToLower(key)]); text != "" {
			return text
		}
	}
	return ""
}

// Raw returns the first present, non-empty raw value among the given keys.
func (l *Lookup) Raw(keys ...string) any {
	for _, key := range keys {
		val, ok := l.values[strings.ToLower(key)]
		if !ok || val == nil || val == "" {
			continue
		}
		return val
	}
	return nil
}

// RawField resolves a canonical field's raw value via the rules table.
func (l *Lookup) RawField(field string) any {
	return l.Raw(CandidateKeys(field)...)
}

// CleanText converts common value shapes to a trimmed string. Maps prefer a
// "text" or "value" entry, then fall back to joining first-level values;
// lists join their cleaned elements with "; ". Empty results return "".
func CleanText(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		if text, ok := v["text"]; ok {
			return CleanText(text)
		}
		if val, ok := v["value"]; ok {
			return CleanText(val)
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var parts []string
		for _, k := range keys {
			if part := strings.TrimSpace(fmt.Sprint(v[k])); part != "" && v[k] != nil {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, " ")
	case []any:
		var parts []string
		for _, item := range v {
			if part := CleanText(item); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "; ")
	case []string:
		var parts []string
		for _, item := range v {
			if part := strings.TrimSpace(item); part != "" {
				parts = append(parts, part)
			}
		}
		return strings.Join(parts, "; ")
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeHours flattens the upstream hours payload to display text. Google
// Places nests weekday descriptions; generic maps become "key: value" pairs.
func NormalizeHours(value any) string {
	m, ok := value.(map[string]any)
	if !ok {
		return CleanText(value)
	}
	for key, val := range m {
		if strings.EqualFold(key, "weekdayDescriptions") {
			return CleanText(val)
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		if text := CleanText(m[k]); text != "" {
			parts = append(parts, k+": "+text)
		}
	}
	return strings.Join(parts, "; ")
}
