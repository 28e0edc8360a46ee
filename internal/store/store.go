// Package store provides persistence for places, pickup windows, PINs, and
// user locations, with SQLite and Postgres backends.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/kingston-caremap/caremap/internal/model"
)

// Sentinel errors surfaced to callers as rejected input, never as system
// faults.
var (
	// ErrPINUsed is returned when the authorization code was already
	// consumed by an earlier pickup creation.
	ErrPINUsed = eris.New("PIN already used")

	// ErrPINUnknown is returned when no PIN with the given code was issued.
	ErrPINUnknown = eris.New("invalid PIN")
)

// BoxFilter selects place candidates whose coordinates fall inside a
// bounding box, optionally restricted to one category. This is the coarse
// prefilter; callers apply the exact distance cut.
type BoxFilter struct {
	LatMin, LatMax float64
	LonMin, LonMax float64
	Category       string
	Limit          int // candidate cap; <=0 uses the backend default
}

// SearchFilter selects places by substring match with pagination.
type SearchFilter struct {
	Category string
	Location string
	Page     int
	Limit    int
}

// Store defines the persistence interface shared by all backends.
type Store interface {
	// Places (written only by the ingestion pipeline)
	UpsertPlace(ctx context.Context, source string, p *model.Place) (int64, error)
	HasTitleCategory(ctx context.Context, name, category string) (bool, error)
	ListPlacesInBox(ctx context.Context, f BoxFilter) ([]model.Place, error)
	SearchPlaces(ctx context.Context, f SearchFilter) ([]model.Place, int, error)
	CountPlaces(ctx context.Context) (int, error)
	ReplaceAllPlaces(ctx context.Context, places []model.Place) (int, error)

	// Category side-table (many-to-many with places)
	EnsureCategory(ctx context.Context, name string) (int64, error)
	LinkPlaceCategory(ctx context.Context, placeID, categoryID int64) error

	// Pickups: creation consumes the PIN atomically with the insert.
	CreatePickup(ctx context.Context, p *model.Pickup, authCode string) (*model.Pickup, error)
	ListActivePickupsInBox(ctx context.Context, latMin, latMax, lonMin, lonMax float64) ([]model.Pickup, error)
	IssuePIN(ctx context.Context, code string) error

	// User locations
	SaveUserLocation(ctx context.Context, userID string, lat, lon float64) error
	GetUserLocation(ctx context.Context, userID string) (*model.UserLocation, error)

	// Watchlist
	AddToWatchlist(ctx context.Context, placeID int64) error
	ListWatchlist(ctx context.Context) ([]model.Place, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Candidate caps bound how many bbox rows the coarse queries return before
// the exact distance filter runs.
const (
	placeCandidateCap  = 1000
	pickupCandidateCap = 500
)
