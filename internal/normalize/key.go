package normalize

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripDiacritics decomposes text and removes combining marks, so that
// "Café" and "Cafe" produce the same identity key.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormKey lowercases text, folds diacritics, drops everything but letters,
// digits, and spaces, and collapses whitespace. Used for all identity keys.
func NormKey(text string) string {
	if text == "" {
		return ""
	}
	if folded, _, err := transform.String(stripDiacritics, text); err == nil {
		text = folded
	}
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// SourceKey derives the content-addressed de-duplication key for a place:
// a sha1 over the normalized name, normalized address, and coordinates
// rounded to 5 decimal places (~1.1m). Stable across re-ingestion.
func SourceKey(name, address string, lat, lon float64) string {
	base := strings.Join([]string{
		NormKey(name),
		NormKey(address),
		fmt.Sprintf("%.5f", lat),
		fmt.Sprintf("%.5f", lon),
	}, "|")
	sum := sha1.Sum([]byte(base))
	return hex.EncodeToString(sum[:])
}

// TitleCategoryKey is the secondary duplicate guard: two records with the
// same normalized name and category are treated as the same entity even
// when address formatting drifts. Known to over-merge same-name chains.
func TitleCategoryKey(name, category string) string {
	return NormKey(name) + "|" + NormKey(category)
}
