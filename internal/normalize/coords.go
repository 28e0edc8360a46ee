package normalize

import (
	"math"
	"strconv"
	"strings"
)

// ExtractCoordinates resolves a latitude/longitude pair from a record's
// geometry and property maps. Extraction order: GeoJSON coordinates array
// ([lon, lat], including a nested first point), x/y keys, latitude/longitude
// key variants, then a nested location object. Values that fail numeric
// parsing or produce NaN/Inf yield ok=false.
func ExtractCoordinates(geom map[string]any, lookup *Lookup) (lat, lon float64, ok bool) {
	var latRaw, lonRaw any

	if geom != nil {
		if coords, isList := geom["coordinates"].([]any); isList && len(coords) >= 2 {
			first, second := coords[0], coords[1]
			// MultiPoint and friends nest the first position.
			if nested, isNested := first.([]any); isNested && len(nested) >= 2 {
				first, second = nested[0], nested[1]
			}
			lonRaw, latRaw = first, second
		}
		if latRaw == nil || lonRaw == nil {
			if x, has := geom["x"]; has {
				lonRaw = firstNonNil(lonRaw, x)
			}
			if y, has := geom["y"]; has {
				latRaw = firstNonNil(latRaw, y)
			}
			latRaw = firstNonNil(latRaw, geom["latitude"], geom["lat"])
			lonRaw = firstNonNil(lonRaw, geom["longitude"], geom["lon"], geom["lng"])
		}
	}

	if latRaw == nil || lonRaw == nil {
		latRaw = firstNonNil(latRaw, lookup.Raw("latitude", "lat"))
		lonRaw = firstNonNil(lonRaw, lookup.Raw("longitude", "lon", "lng", "long"))
	}

	if latRaw == nil || lonRaw == nil {
		if loc, isMap := lookup.Raw("location").(map[string]any); isMap {
			latRaw = firstNonNil(latRaw, loc["latitude"], loc["lat"])
			lonRaw = firstNonNil(lonRaw, loc["longitude"], loc["lng"], loc["lon"])
		}
	}

	lat, latOK := toFloat(latRaw)
	lon, lonOK := toFloat(lonRaw)
	if !latOK || !lonOK {
		return 0, 0, false
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return 0, 0, false
	}
	return lat, lon, true
}

func firstNonNil(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
