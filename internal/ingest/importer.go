// Package ingest drives the import pipeline: fetch raw records from the
// configured sources, normalize them, and merge them into the store.
package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/normalize"
	"github.com/kingston-caremap/caremap/internal/source"
	"github.com/kingston-caremap/caremap/internal/store"
)

// Importer merges normalized source records into the store.
type Importer struct {
	store store.Store
}

// NewImporter creates an Importer writing to the given store.
func NewImporter(st store.Store) *Importer {
	return &Importer{store: st}
}

// Import normalizes and upserts one source's records. Every skipped record
// is counted under its reason; the import itself never fails on bad records,
// only on store errors.
func (i *Importer) Import(ctx context.Context, sourceName string, records []any) (*model.Report, error) {
	report := &model.Report{Source: sourceName}
	runTS := time.Now().UTC().Format(time.RFC3339)

	seenKeys := make(map[string]bool)
	seenTitles := make(map[string]bool)

	for _, raw := range records {
		place, reason := normalize.ParseRecord(raw, runTS)
		if reason != "" {
			report.CountSkip(reason)
			continue
		}

		if seenKeys[place.SourceKey] {
			report.CountSkip(model.SkipDuplicate)
			continue
		}
		seenKeys[place.SourceKey] = true

		titleKey := normalize.TitleCategoryKey(place.Name, place.Category)
		if seenTitles[titleKey] {
			report.CountSkip(model.SkipDuplicateTitleCategory)
			continue
		}
		exists, err := i.store.HasTitleCategory(ctx, place.Name, place.Category)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: title check for %s", sourceName)
		}
		if exists {
			report.CountSkip(model.SkipDuplicateTitleCategory)
			continue
		}
		seenTitles[titleKey] = true

		placeID, err := i.store.UpsertPlace(ctx, sourceName, place)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: upsert for %s", sourceName)
		}

		if err := i.linkCategory(ctx, placeID, place.Category); err != nil {
			return nil, err
		}

		report.Imported++
	}

	total, err := i.store.CountPlaces(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: count places")
	}
	report.TotalPlaces = total

	zap.L().Info("ingest: import complete",
		zap.String("source", sourceName),
		zap.Int("imported", report.Imported),
		zap.Int("skipped", report.Skipped),
		zap.Int("total_places", report.TotalPlaces),
	)
	return report, nil
}

func (i *Importer) linkCategory(ctx context.Context, placeID int64, category string) error {
	name := strings.TrimSpace(category)
	if name == "" {
		return nil
	}
	catID, err := i.store.EnsureCategory(ctx, name)
	if err != nil {
		return eris.Wrap(err, "ingest: ensure category")
	}
	if err := i.store.LinkPlaceCategory(ctx, placeID, catID); err != nil {
		return eris.Wrap(err, "ingest: link category")
	}
	return nil
}

// ImportSources fetches all sources concurrently and imports each one's
// records. A source that fails to fetch is logged and skipped; the rest
// still import.
func (i *Importer) ImportSources(ctx context.Context, sources []source.Source) (*model.Report, error) {
	results := fetchAll(ctx, sources)

	merged := &model.Report{Source: "all"}
	for idx, records := range results {
		if records == nil {
			continue
		}
		report, err := i.Import(ctx, sources[idx].Name(), records)
		if err != nil {
			return nil, err
		}
		merged.Merge(*report)
	}

	total, err := i.store.CountPlaces(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: count places")
	}
	merged.TotalPlaces = total
	return merged, nil
}

// fetchAll runs every source fetch concurrently. Failures leave a nil slot
// and are logged; a feed being down must not block the others.
func fetchAll(ctx context.Context, sources []source.Source) [][]any {
	results := make([][]any, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for idx, src := range sources {
		g.Go(func() error {
			records, err := src.Fetch(gctx)
			if err != nil {
				zap.L().Error("ingest: source fetch failed",
					zap.String("source", src.Name()),
					zap.Error(err),
				)
				return nil
			}
			results[idx] = records
			return nil
		})
	}
	_ = g.Wait()

	return results
}
