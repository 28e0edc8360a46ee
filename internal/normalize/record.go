package normalize

import (
	"github.com/kingston-caremap/caremap/internal/model"
)

// ParseRecord normalizes one raw source record into a canonical Place.
// A non-empty reason means the record was rejected: name, address, and
// coordinates are required; category never is.
func ParseRecord(raw any, runTimestamp string) (*model.Place, string) {
	rec, ok := raw.(map[string]any)
	if !ok {
		return nil, model.SkipNotADict
	}

	props := propsOf(rec)
	geom, _ := rec["geometry"].(map[string]any)
	if geom == nil {
		if loc, isMap := rec["location"].(map[string]any); isMap {
			geom = loc
		}
	}

	lookup := NewLookup(props, rec)

	name := lookup.Field(FieldName)
	address := lookup.Field(FieldAddress)
	category := ResolveCategory(lookup)
	lat, lon, hasCoords := ExtractCoordinates(geom, lookup)

	if name == "" || address == "" || !hasCoords {
		return nil, model.SkipMissingRequiredFields
	}

	place := &model.Place{
		Name:         name,
		Category:     category,
		Address:      address,
		Latitude:     &lat,
		Longitude:    &lon,
		ExternalID:   lookup.Field(FieldExternalID),
		Phone:        lookup.Field(FieldPhone),
		Website:      lookup.Field(FieldWebsite),
		Hours:        NormalizeHours(lookup.RawField(FieldHours)),
		LastVerified: NormalizeTimestamp(lookup.RawField(FieldLastVerified), runTimestamp),
	}
	place.SourceKey = SourceKey(place.Name, place.Address, lat, lon)
	return place, ""
}

// propsOf picks the property bag of a record. GeoJSON features carry
// "properties", ArcGIS JSON carries "attributes"; flat records are their
// own property bag.
func propsOf(rec map[string]any) map[string]any {
	for _, key := range []string{"properties", "attributes", "props"} {
		if props, ok := rec[key].(map[string]any); ok && len(props) > 0 {
			return props
		}
	}
	return rec
}

// Records extracts the list of raw records from decoded JSON. Top-level
// arrays are used directly; objects are probed for the conventional
// list-of-records keys.
func Records(data any) []any {
	if list, ok := data.([]any); ok {
		return list
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range []string{"features", "items", "places", "data"} {
		if list, isList := obj[key].([]any); isList {
			return list
		}
	}
	return nil
}
