// Package query answers proximity questions over the stored places and
// pickups: a coarse bounding-box prefilter narrows the candidates, then the
// exact great-circle distance decides inclusion.
package query

import (
	"context"
	"math"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/geo"
	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/store"
)

// Validation errors surfaced to callers as rejected input.
var (
	ErrInvalidCoords = eris.New("latitude or longitude out of range")
	ErrInvalidRadius = eris.New("radius must be positive")
)

// Service runs spatial queries against a store.
type Service struct {
	store store.Store
	cfg   config.QueryConfig
}

// NewService creates a query service with the given defaults.
func NewService(st store.Store, cfg config.QueryConfig) *Service {
	return &Service{store: st, cfg: cfg}
}

// NearbyParams describes one proximity query. Zero values fall back to the
// configured defaults.
type NearbyParams struct {
	Lat      float64
	Lon      float64
	RadiusKM float64
	Category string
	Limit    int
}

func (s *Service) normalize(p *NearbyParams) error {
	if !geo.ValidCoords(p.Lat, p.Lon) {
		return ErrInvalidCoords
	}
	if p.RadiusKM == 0 {
		p.RadiusKM = s.cfg.DefaultRadiusKM
	}
	if p.RadiusKM <= 0 {
		return ErrInvalidRadius
	}
	if p.Limit <= 0 {
		p.Limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && p.Limit > s.cfg.MaxLimit {
		p.Limit = s.cfg.MaxLimit
	}
	return nil
}

// Nearby returns places within the radius, closest first. Ties break on
// name so results are stable across runs.
func (s *Service) Nearby(ctx context.Context, p NearbyParams) ([]model.NearbyPlace, error) {
	if err := s.normalize(&p); err != nil {
		return nil, err
	}

	latMin, latMax, lonMin, lonMax := geo.BoundingBox(p.Lat, p.Lon, p.RadiusKM)
	candidates, err := s.store.ListPlacesInBox(ctx, store.BoxFilter{
		LatMin: latMin, LatMax: latMax,
		LonMin: lonMin, LonMax: lonMax,
		Category: p.Category,
	})
	if err != nil {
		return nil, eris.Wrap(err, "query: nearby candidates")
	}

	results := make([]model.NearbyPlace, 0, len(candidates))
	for _, c := range candidates {
		if !c.HasCoords() {
			continue
		}
		d := geo.Haversine(p.Lat, p.Lon, *c.Latitude, *c.Longitude)
		if d > p.RadiusKM {
			continue
		}
		results = append(results, model.NearbyPlace{Place: c, DistanceKM: d})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].DistanceKM != results[j].DistanceKM {
			return results[i].DistanceKM < results[j].DistanceKM
		}
		return results[i].Name < results[j].Name
	})

	if len(results) > p.Limit {
		results = results[:p.Limit]
	}
	for i := range results {
		results[i].DistanceKM = roundKM(results[i].DistanceKM)
	}
	return results, nil
}

// PickupsNearby returns active pickup windows within the radius. Candidates
// arrive ordered by window end and that order is preserved: the soonest
// windows matter most, not the closest.
func (s *Service) PickupsNearby(ctx context.Context, p NearbyParams) ([]model.NearbyPickup, error) {
	if err := s.normalize(&p); err != nil {
		return nil, err
	}

	latMin, latMax, lonMin, lonMax := geo.BoundingBox(p.Lat, p.Lon, p.RadiusKM)
	candidates, err := s.store.ListActivePickupsInBox(ctx, latMin, latMax, lonMin, lonMax)
	if err != nil {
		return nil, eris.Wrap(err, "query: pickup candidates")
	}

	results := make([]model.NearbyPickup, 0, len(candidates))
	for _, c := range candidates {
		if c.Latitude == nil || c.Longitude == nil {
			continue
		}
		d := geo.Haversine(p.Lat, p.Lon, *c.Latitude, *c.Longitude)
		if d > p.RadiusKM {
			continue
		}
		results = append(results, model.NearbyPickup{Pickup: c, DistanceKM: roundKM(d)})
		if len(results) >= p.Limit {
			break
		}
	}
	return results, nil
}

// roundKM rounds a distance to three decimals (metre precision) for output.
func roundKM(d float64) float64 {
	return math.Round(d*1000) / 1000
}
