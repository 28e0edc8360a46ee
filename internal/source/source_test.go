package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
)

func testHTTPFetcher() fetcher.Fetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second, MaxRetries: 1})
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "bad", Kind: "carrier-pigeon"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown kind "carrier-pigeon"`)
}

func TestNewBuildsEachKind(t *testing.T) {
	for _, kind := range []string{"json", "geojson", "arcgis", "xlsx", "shapefile"} {
		t.Run(kind, func(t *testing.T) {
			src, err := New(config.SourceConfig{Name: "feed", Kind: kind}, testHTTPFetcher(), nil)
			require.NoError(t, err)
			assert.Equal(t, "feed", src.Name())
		})
	}
}

func TestJSONSourceFromURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[
			{"type":"Feature","properties":{"NAME":"Community Kitchen"},"geometry":{"type":"Point","coordinates":[-76.486,44.2312]}}
		]}`))
	}))
	defer srv.Close()

	src, err := New(config.SourceConfig{Name: "city", Kind: "geojson", URL: srv.URL}, testHTTPFetcher(), nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestJSONSourceReusesCacheWhenUnchanged(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(`[{"name":"Community Kitchen"}]`))
	}))
	defer srv.Close()

	src, err := New(config.SourceConfig{Name: "city", Kind: "json", URL: srv.URL}, testHTTPFetcher(), nil)
	require.NoError(t, err)

	first, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// The 304 carries no body, so these records can only come from the cache.
	second, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(2), hits.Load())
}

func TestJSONSourceFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"A"},{"name":"B"}]`), 0o644))

	src, err := New(config.SourceConfig{Name: "local", Kind: "json", Path: path}, nil, nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestJSONSourceRejectsPayloadWithoutRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status":"ok"}`), 0o644))

	src, err := New(config.SourceConfig{Name: "local", Kind: "json", Path: path}, nil, nil)
	require.NoError(t, err)

	_, err = src.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no record list")
}

func TestApplyCategory(t *testing.T) {
	records := []any{
		map[string]any{"name": "Bare"},
		map[string]any{"name": "Typed", "TYPE": "Meal Program"},
		map[string]any{"name": "Categorized", "category": "shelter"},
		map[string]any{"properties": map[string]any{"NAME": "Feature Bare"}},
	}

	applyCategory(records, "Warm Up / Cool Down Location")

	assert.Equal(t, "Warm Up / Cool Down Location", records[0].(map[string]any)["category"])
	_, has := records[1].(map[string]any)["category"]
	assert.False(t, has, "records with a service type keep it")
	assert.Equal(t, "shelter", records[2].(map[string]any)["category"])

	props := records[3].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "Warm Up / Cool Down Location", props["category"])
}
