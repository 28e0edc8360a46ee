package source

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-caremap/caremap/internal/config"
)

func writePointShapefile(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "services.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("ADDRESS", 60),
	}))

	points := []struct {
		x, y          float64
		name, address string
	}{
		{-76.4860, 44.2312, "Community Kitchen", "85 Queen St"},
		{-76.4900, 44.2290, "Youth Shelter", "234 Brock St"},
	}
	for i, p := range points {
		w.Write(&shp.Point{X: p.x, Y: p.y})
		require.NoError(t, w.WriteAttribute(i, 0, p.name))
		require.NoError(t, w.WriteAttribute(i, 1, p.address))
	}
	w.Close()
	return path
}

func TestShapefileSourceFromPath(t *testing.T) {
	path := writePointShapefile(t, t.TempDir())

	src, err := New(config.SourceConfig{
		Name: "gis_export", Kind: "shapefile", Path: path, Category: "Health Service",
	}, nil, nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	rec := records[0].(map[string]any)
	props := rec["properties"].(map[string]any)
	assert.Equal(t, "Community Kitchen", props["NAME"])
	assert.Equal(t, "85 Queen St", props["ADDRESS"])
	assert.Equal(t, "Health Service", props["category"])

	coords := rec["geometry"].(map[string]any)["coordinates"].([]any)
	assert.InDelta(t, -76.4860, coords[0].(float64), 1e-6)
	assert.InDelta(t, 44.2312, coords[1].(float64), 1e-6)
}

func TestShapefileSourceFromZip(t *testing.T) {
	shpDir := t.TempDir()
	writePointShapefile(t, shpDir)

	zipPath := filepath.Join(t.TempDir(), "export.zip")
	zf, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(zf)

	entries, err := os.ReadDir(shpDir)
	require.NoError(t, err)
	for _, e := range entries {
		in, err := os.Open(filepath.Join(shpDir, e.Name()))
		require.NoError(t, err)
		out, err := zw.Create(e.Name())
		require.NoError(t, err)
		_, err = io.Copy(out, in)
		require.NoError(t, err)
		in.Close()
	}
	require.NoError(t, zw.Close())
	require.NoError(t, zf.Close())

	src, err := New(config.SourceConfig{Name: "gis_zip", Kind: "shapefile", Path: zipPath}, nil, nil)
	require.NoError(t, err)

	records, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
