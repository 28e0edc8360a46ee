package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/normalize"
	"github.com/kingston-caremap/caremap/internal/source"
	"github.com/kingston-caremap/caremap/internal/store"
)

// ErrNoRecords is returned when a refresh produced nothing to load. The
// existing data is left untouched rather than replaced with an empty set.
var ErrNoRecords = eris.New("refresh produced no records")

// Refresher rebuilds the full place set from scratch: every source is
// fetched and normalized, then the result replaces the stored places in one
// transaction.
type Refresher struct {
	store   store.Store
	sources []source.Source
}

// NewRefresher creates a Refresher over the given sources.
func NewRefresher(st store.Store, sources []source.Source) *Refresher {
	return &Refresher{store: st, sources: sources}
}

// Refresh fetches all sources, normalizes and de-duplicates their records,
// and atomically replaces the stored places. Returns the number of places
// loaded. If every source fails or yields nothing usable, ErrNoRecords is
// returned and the store is not modified.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	results := fetchAll(ctx, r.sources)
	runTS := time.Now().UTC().Format(time.RFC3339)

	seenKeys := make(map[string]bool)
	seenTitles := make(map[string]bool)
	var places []model.Place
	var skipped int

	for idx, records := range results {
		if records == nil {
			continue
		}
		sourceName := r.sources[idx].Name()
		for _, raw := range records {
			place, reason := normalize.ParseRecord(raw, runTS)
			if reason != "" {
				skipped++
				continue
			}
			if seenKeys[place.SourceKey] {
				skipped++
				continue
			}
			titleKey := normalize.TitleCategoryKey(place.Name, place.Category)
			if seenTitles[titleKey] {
				skipped++
				continue
			}
			seenKeys[place.SourceKey] = true
			seenTitles[titleKey] = true

			place.Source = sourceName
			places = append(places, *place)
		}
	}

	if len(places) == 0 {
		return 0, ErrNoRecords
	}

	n, err := r.store.ReplaceAllPlaces(ctx, places)
	if err != nil {
		return 0, eris.Wrap(err, "ingest: replace places")
	}

	zap.L().Info("ingest: refresh complete",
		zap.Int("loaded", n),
		zap.Int("skipped", skipped),
	)
	return n, nil
}
