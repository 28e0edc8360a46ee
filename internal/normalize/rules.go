// Package normalize maps heterogeneous source records (GeoJSON properties,
// commercial places payloads, flat JSON) into canonical Place records,
// resolves the category taxonomy, and derives stable identity keys for
// de-duplication.
package normalize

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

//go:embed categories.yaml
var categoriesYAML []byte

// Canonical field names used by the extraction rules table.
const (
	FieldName         = "name"
	FieldCategory     = "category"
	FieldAddress      = "address"
	FieldPhone        = "phone"
	FieldWebsite      = "website"
	FieldHours        = "hours"
	FieldLastVerified = "last_verified"
	FieldExternalID   = "external_id"
)

// fieldRules maps each canonical field to its ordered candidate keys.
var fieldRules map[string][]string

type categoryTable struct {
	Types            map[string]string `yaml:"types"`
	Fallback         string            `yaml:"fallback"`
	RestaurantTokens []string          `yaml:"restaurant_tokens"`
}

var categories categoryTable

// restaurantTokens is the token set that forces the Restaurant bucket.
var restaurantTokens map[string]bool

func init() {
	if err := loadTables(); err != nil {
		panic(err)
	}
}

func loadTables() error {
	if err := yaml.Unmarshal(rulesYAML, &fieldRules); err != nil {
		return eris.Wrap(err, "normalize: parse rules table")
	}
	if err := yaml.Unmarshal(categoriesYAML, &categories); err != nil {
		return eris.Wrap(err, "normalize: parse category table")
	}
	restaurantTokens = make(map[string]bool, len(categories.RestaurantTokens))
	for _, tok := range categories.RestaurantTokens {
		restaurantTokens[tok] = true
	}
	return nil
}

// CandidateKeys returns the ordered candidate keys for a canonical field.
// Unknown fields return nil.
func CandidateKeys(field string) []string {
	return fieldRules[field]
}
