package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-caremap/caremap/internal/config"
)

func TestArcGISSourceQueryURL(t *testing.T) {
	s := &ArcGISSource{cfg: config.SourceConfig{
		Name: "city_services",
		URL:  "https://services.example.org/FeatureServer/0",
	}}

	u, err := s.queryURL()
	require.NoError(t, err)
	assert.Contains(t, u, "/FeatureServer/0/query?")
	assert.Contains(t, u, "where=1%3D1")
	assert.Contains(t, u, "outFields=%2A")
	assert.Contains(t, u, "f=geojson")
	assert.Contains(t, u, "outSR=4326")
}

func TestArcGISSourceQueryURLAlreadyHasQueryPath(t *testing.T) {
	s := &ArcGISSource{cfg: config.SourceConfig{
		URL: "https://services.example.org/FeatureServer/0/query",
	}}

	u, err := s.queryURL()
	require.NoError(t, err)
	assert.NotContains(t, u, "/query/query")
}

func TestArcGISSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1=1", r.URL.Query().Get("where"))
		assert.Equal(t, "geojson", r.URL.Query().Get("f"))
		w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","properties":{"PROGRAM_NAME":"Warming Centre","TYPE":"Warm Up / Cool Down Location"},
			 "geometry":{"type":"Point","coordinates":[-76.481,44.231]}}
		]}`))
	}))
	defer srv.Close()

	src, err := New(config.SourceConfig{Name: "city", Kind: "arcgis", URL: srv.URL}, testHTTPFetcher(), nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0].(map[string]any)
	props := rec["properties"].(map[string]any)
	assert.Equal(t, "Warming Centre", props["PROGRAM_NAME"])

	geomMap := rec["geometry"].(map[string]any)
	coords := geomMap["coordinates"].([]any)
	assert.InDelta(t, -76.481, coords[0].(float64), 1e-9)
	assert.InDelta(t, 44.231, coords[1].(float64), 1e-9)
}

func TestDecodeFeatureCollection(t *testing.T) {
	data := []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{"NAME":"Point Feature"},"geometry":{"type":"Point","coordinates":[-76.5,44.2]}},
		{"type":"Feature","properties":{"NAME":"Line Feature"},"geometry":{"type":"LineString","coordinates":[[-76.1,44.1],[-76.2,44.2]]}},
		{"type":"Feature","properties":{"NAME":"No Geometry"},"geometry":null}
	]}`)

	records, err := decodeFeatureCollection(data)
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0].(map[string]any)
	coords := first["geometry"].(map[string]any)["coordinates"].([]any)
	assert.InDelta(t, -76.5, coords[0].(float64), 1e-9)

	second := records[1].(map[string]any)
	coords = second["geometry"].(map[string]any)["coordinates"].([]any)
	assert.InDelta(t, -76.1, coords[0].(float64), 1e-9, "non-point geometry contributes its first vertex")

	third := records[2].(map[string]any)
	_, hasGeom := third["geometry"]
	assert.False(t, hasGeom)
}

func TestDecodeFeatureCollectionRejectsGarbage(t *testing.T) {
	_, err := decodeFeatureCollection([]byte(`{"type":"FeatureCollection","features":"nope"}`))
	require.Error(t, err)
}
