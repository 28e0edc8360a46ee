package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/source"
	"github.com/kingston-caremap/caremap/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

// stubSource feeds canned records into the pipeline.
type stubSource struct {
	name    string
	records []any
	err     error
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]any, error) {
	return s.records, s.err
}

func record(name, address string, lat, lon float64) map[string]any {
	return map[string]any{
		"name":     name,
		"address":  address,
		"latitude": lat, "longitude": lon,
		"category": "Meal Program",
	}
}

func TestImportCountsSkipReasons(t *testing.T) {
	st := newTestStore(t)
	imp := NewImporter(st)

	records := []any{
		record("Community Kitchen", "85 Queen St", 44.2312, -76.4860),
		"not a record",
		map[string]any{"name": "No Address", "latitude": 44.2, "longitude": -76.5},
		record("Community Kitchen", "85 Queen St", 44.2312, -76.4860), // same identity key
	}

	report, err := imp.Import(context.Background(), "city_open_data", records)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 3, report.Skipped)
	assert.Equal(t, 1, report.SkipReasons[model.SkipNotADict])
	assert.Equal(t, 1, report.SkipReasons[model.SkipMissingRequiredFields])
	assert.Equal(t, 1, report.SkipReasons[model.SkipDuplicate])
	assert.Equal(t, 1, report.TotalPlaces)
}

func TestImportTitleCategoryGuard(t *testing.T) {
	st := newTestStore(t)
	imp := NewImporter(st)

	// Same name and category at a different location: guarded as duplicate.
	records := []any{
		record("Community Kitchen", "85 Queen St", 44.2312, -76.4860),
		record("Community Kitchen", "999 Other Rd", 44.9999, -76.9999),
	}

	report, err := imp.Import(context.Background(), "city_open_data", records)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.SkipReasons[model.SkipDuplicateTitleCategory])
}

func TestImportSecondRunSkipsExisting(t *testing.T) {
	st := newTestStore(t)
	imp := NewImporter(st)
	records := []any{record("Community Kitchen", "85 Queen St", 44.2312, -76.4860)}

	first, err := imp.Import(context.Background(), "city_open_data", records)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Imported)

	second, err := imp.Import(context.Background(), "city_open_data", records)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 1, second.SkipReasons[model.SkipDuplicateTitleCategory])
	assert.Equal(t, 1, second.TotalPlaces, "store still holds one row")
}

func TestImportLinksCategories(t *testing.T) {
	st := newTestStore(t)
	imp := NewImporter(st)

	_, err := imp.Import(context.Background(), "src", []any{
		record("Community Kitchen", "85 Queen St", 44.2312, -76.4860),
	})
	require.NoError(t, err)

	// Relinking the same category must not fail on a second place.
	_, err = imp.Import(context.Background(), "src", []any{
		record("Second Kitchen", "10 King St", 44.2400, -76.4800),
	})
	require.NoError(t, err)
}

func TestImportSourcesToleratesFailedFeeds(t *testing.T) {
	st := newTestStore(t)
	imp := NewImporter(st)

	sources := []source.Source{
		&stubSource{name: "down", err: eris.New("connection refused")},
		&stubSource{name: "up", records: []any{
			record("Community Kitchen", "85 Queen St", 44.2312, -76.4860),
		}},
	}

	report, err := imp.ImportSources(context.Background(), sources)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, 1, report.TotalPlaces)
}
