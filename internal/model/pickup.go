package model

import "time"

// Pickup is a time-bounded surplus-goods listing posted by a business.
// Creation is gated by a one-time PIN; rows are never updated afterwards.
type Pickup struct {
	ID           string     `json:"id"`
	PlaceID      *int64     `json:"place_id,omitempty"`
	BusinessName string     `json:"business_name"`
	Address      string     `json:"address,omitempty"`
	Latitude     *float64   `json:"latitude,omitempty"`
	Longitude    *float64   `json:"longitude,omitempty"`
	WindowStart  time.Time  `json:"window_start"`
	WindowEnd    time.Time  `json:"window_end"`
	Notes        string     `json:"notes,omitempty"`
	ClaimRule    string     `json:"claim_rule,omitempty"`
	PostedAt     time.Time  `json:"posted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Active       bool       `json:"active"`
}

// NearbyPickup is a Pickup annotated with its distance from a query origin.
type NearbyPickup struct {
	Pickup
	DistanceKM float64 `json:"distance_km"`
}

// PickupPIN is a pre-issued, single-use authorization code for pickup
// creation.
type PickupPIN struct {
	Code     string     `json:"code"`
	IssuedAt time.Time  `json:"issued_at"`
	UsedAt   *time.Time `json:"used_at,omitempty"`
}
