package normalize

import (
	"strings"

	"github.com/kingston-caremap/caremap/internal/model"
)

// Category re-bucketing for commercial food businesses happens on tokens
// extracted from both the category text and any raw type list, split on
// whitespace after mapping -, _ and / to spaces.
func categoryTokens(texts []string) map[string]bool {
	tokens := make(map[string]bool)
	replacer := strings.NewReplacer("-", " ", "_", " ", "/", " ")
	for _, text := range texts {
		lower := replacer.Replace(strings.ToLower(text))
		for _, tok := range strings.Fields(lower) {
			tokens[tok] = true
		}
	}
	return tokens
}

// NormalizeCategory resolves a record's category. Food-service tokens in the
// category or raw types force the "Restaurant" bucket regardless of the
// source-declared type; otherwise the raw category text is used verbatim,
// falling back to the sentinel when empty.
func NormalizeCategory(categoryText string, typesRaw any) string {
	catText := CleanText(categoryText)

	texts := []string{catText}
	switch v := typesRaw.(type) {
	case []any:
		for _, item := range v {
			if text := CleanText(item); text != "" {
				texts = append(texts, text)
			}
		}
	case string:
		if text := CleanText(v); text != "" {
			texts = append(texts, text)
		}
	}

	for tok := range categoryTokens(texts) {
		if restaurantTokens[tok] {
			return "Restaurant"
		}
	}

	if catText == "" {
		return model.FallbackCategory
	}
	return catText
}

// MapServiceType maps a raw upstream TYPE value to its canonical category
// id. Unknown or empty types resolve to the fallback id, never an error.
func MapServiceType(rawType string) string {
	if mapped, ok := categories.Types[strings.TrimSpace(rawType)]; ok {
		return mapped
	}
	return categories.Fallback
}

// ResolveCategory resolves a record's category from its lookup view.
// Precedence: the restaurant override, then the canonical service-type
// table, then verbatim text. Records that declare a service TYPE but match
// nothing in the table resolve to the table's fallback id; records with a
// free-form category keep it verbatim.
func ResolveCategory(l *Lookup) string {
	catText := l.Field(FieldCategory)
	normalized := NormalizeCategory(catText, l.Raw("types"))
	if normalized == "Restaurant" {
		return normalized
	}
	if mapped, ok := categories.Types[strings.TrimSpace(catText)]; ok {
		return mapped
	}
	if l.Text("category") == "" && l.Text("type") != "" {
		return categories.Fallback
	}
	return normalized
}
