package source

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// decodeFeatureCollection parses a strict GeoJSON FeatureCollection and
// converts each feature to a raw record map. Point features carry their
// coordinates through; other geometries contribute their first vertex,
// which is enough for the point-of-interest feeds we ingest.
func decodeFeatureCollection(data []byte) ([]any, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "source: decode feature collection")
	}

	records := make([]any, 0, len(fc.Features))
	for _, f := range fc.Features {
		rec := map[string]any{
			"type":       "Feature",
			"properties": f.Properties,
		}
		if coords, ok := geometryCoords(f.Geometry); ok {
			rec["geometry"] = map[string]any{
				"type":        "Point",
				"coordinates": []any{coords[0], coords[1]},
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// geometryCoords returns a representative [lon, lat] pair for a geometry.
func geometryCoords(g geom.T) ([2]float64, bool) {
	if g == nil {
		return [2]float64{}, false
	}
	if pt, ok := g.(*geom.Point); ok {
		return [2]float64{pt.X(), pt.Y()}, true
	}
	flat := g.FlatCoords()
	if len(flat) < 2 {
		return [2]float64{}, false
	}
	return [2]float64{flat[0], flat[1]}, true
}
