// Package model defines the canonical records shared across the ingestion
// pipeline, the store, and the HTTP API.
package model

import "time"

// FallbackCategory is assigned when no category can be resolved for a record.
const FallbackCategory = "Uncategorized"

// Place is a stored point-of-interest record: a service, shelter, or
// business. Places are created and updated only by the ingestion pipeline.
type Place struct {
	ID         int64    `json:"id"`
	Source     string   `json:"source,omitempty"`
	ExternalID string   `json:"external_id,omitempty"`
	Name       string   `json:"name"`
	Category   string   `json:"category"`
	Address    string   `json:"address"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Phone      string   `json:"phone,omitempty"`
	Website    string   `json:"website,omitempty"`
	Hours      string   `json:"hours,omitempty"`

	// LastVerified is ISO-8601 text as provided upstream or stamped at
	// ingestion time.
	LastVerified string `json:"last_verified,omitempty"`

	// SourceKey is the deterministic de-duplication key derived from the
	// normalized name, address, and rounded coordinates.
	SourceKey string `json:"-"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// HasCoords reports whether the place carries a usable coordinate pair.
// Places without coordinates are excluded from spatial results.
func (p *Place) HasCoords() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// NearbyPlace is a Place annotated with its distance from a query origin.
type NearbyPlace struct {
	Place
	DistanceKM float64 `json:"distance_km"`
}

// UserLocation is the last-known location stored for a device.
type UserLocation struct {
	UserID    string    `json:"user_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	UpdatedAt time.Time `json:"updated_at"`
}
