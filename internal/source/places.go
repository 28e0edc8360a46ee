package source

import (
	"context"

	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/pkg/places"
)

// PlacesSource pulls commercial food businesses from the Places API. Each
// configured text query runs with the same bias circle; the raw result maps
// flow through normalization like any other feed.
type PlacesSource struct {
	cfg    config.PlacesConfig
	client places.Client
}

// NewPlacesSource builds a PlacesSource over an existing client.
func NewPlacesSource(cfg config.PlacesConfig, client places.Client) *PlacesSource {
	return &PlacesSource{cfg: cfg, client: client}
}

func (s *PlacesSource) Name() string { return "google_places" }

// Fetch runs every configured query and concatenates the results. The query
// bias circles overlap, so hits are deduplicated by place id and each unique
// place is looked up once for its authoritative record. A failed query fails
// the whole fetch; the caller decides whether that aborts the run.
func (s *PlacesSource) Fetch(ctx context.Context) ([]any, error) {
	var records []any
	seen := make(map[string]bool)
	for _, q := range s.cfg.Queries {
		results, err := s.client.SearchAll(ctx, places.SearchParams{
			Query:      q,
			BiasLat:    s.cfg.BiasLat,
			BiasLon:    s.cfg.BiasLon,
			BiasRadius: s.cfg.BiasRadiusM,
			PageSize:   s.cfg.PageSize,
		})
		if err != nil {
			return nil, err
		}
		zap.L().Debug("source: places query",
			zap.String("query", q),
			zap.Int("results", len(results)),
		)
		for _, r := range results {
			id, _ := r["id"].(string)
			if id == "" {
				records = append(records, r)
				continue
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			records = append(records, s.detail(ctx, id, r))
		}
	}
	return records, nil
}

// detail fetches the per-place record for one search hit. The search result
// stands in when the lookup fails, so a flaky detail endpoint degrades to
// the old behaviour instead of dropping the place.
func (s *PlacesSource) detail(ctx context.Context, id string, fallback map[string]any) map[string]any {
	place, err := s.client.Details(ctx, id)
	if err != nil {
		zap.L().Warn("source: place details lookup failed",
			zap.String("place_id", id),
			zap.Error(err),
		)
		return fallback
	}
	return place
}
