package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/kingston-caremap/caremap/internal/geo"
	"github.com/kingston-caremap/caremap/internal/ingest"
	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/normalize"
	"github.com/kingston-caremap/caremap/internal/query"
	"github.com/kingston-caremap/caremap/internal/store"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultSearchLimit)
	if limit <= 0 || limit > maxSearchLimit {
		limit = defaultSearchLimit
	}
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	results, total, err := s.store.SearchPlaces(r.Context(), store.SearchFilter{
		Category: r.URL.Query().Get("category"),
		Location: r.URL.Query().Get("location"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		internalError(w, "search", err)
		return
	}

	pages := (total + limit - 1) / limit
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"page":    page,
		"limit":   limit,
		"total":   total,
		"pages":   pages,
	})
}

// origin resolves the query origin: explicit coordinates win, otherwise the
// stored location for the device in X-Device-Id.
func (s *Server) origin(r *http.Request) (lat, lon float64, ok bool, err error) {
	lat, haveLat, err := queryFloat(r, "latitude")
	if err != nil {
		return 0, 0, false, err
	}
	lon, haveLon, err := queryFloat(r, "longitude")
	if err != nil {
		return 0, 0, false, err
	}
	if haveLat && haveLon {
		return lat, lon, true, nil
	}

	device := r.Header.Get("X-Device-Id")
	if device == "" {
		return 0, 0, false, nil
	}
	loc, err := s.store.GetUserLocation(r.Context(), device)
	if err != nil || loc == nil {
		return 0, 0, false, err
	}
	return loc.Latitude, loc.Longitude, true, nil
}

func (s *Server) handlePlacesNearby(w http.ResponseWriter, r *http.Request) {
	lat, lon, ok, err := s.origin(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "latitude and longitude required (or a known X-Device-Id)")
		return
	}

	radius, _, err := queryFloat(r, "distance_km")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid distance_km")
		return
	}

	results, err := s.query.Nearby(r.Context(), query.NearbyParams{
		Lat:      lat,
		Lon:      lon,
		RadiusKM: radius,
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit", 0),
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidCoords) || errors.Is(err, query.ErrInvalidRadius) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		internalError(w, "places nearby", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleSaveLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string  `json:"user_id"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if !geo.ValidCoords(req.Latitude, req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude or longitude out of range")
		return
	}

	if err := s.store.SaveUserLocation(r.Context(), req.UserID, req.Latitude, req.Longitude); err != nil {
		internalError(w, "save location", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePickupsNearby(w http.ResponseWriter, r *http.Request) {
	lat, haveLat, err := queryFloat(r, "latitude")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid latitude")
		return
	}
	lon, haveLon, err := queryFloat(r, "longitude")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid longitude")
		return
	}
	if !haveLat || !haveLon {
		writeError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}
	radius, _, err := queryFloat(r, "radius_km")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid radius_km")
		return
	}

	results, err := s.query.PickupsNearby(r.Context(), query.NearbyParams{
		Lat:      lat,
		Lon:      lon,
		RadiusKM: radius,
		Limit:    queryInt(r, "limit", 0),
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidCoords) || errors.Is(err, query.ErrInvalidRadius) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		internalError(w, "pickups nearby", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleCreatePickup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AuthCode     string   `json:"auth_code"`
		PlaceID      *int64   `json:"place_id"`
		BusinessName string   `json:"business_name"`
		Address      string   `json:"address"`
		Latitude     *float64 `json:"latitude"`
		Longitude    *float64 `json:"longitude"`
		WindowStart  string   `json:"window_start"`
		WindowEnd    string   `json:"window_end"`
		ExpiresAt    string   `json:"expires_at"`
		Notes        string   `json:"notes"`
		ClaimRule    string   `json:"claim_rule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AuthCode == "" {
		writeError(w, http.StatusBadRequest, "auth_code is required")
		return
	}
	if req.BusinessName == "" {
		writeError(w, http.StatusBadRequest, "business_name is required")
		return
	}

	start, ok := normalize.ParseISO(req.WindowStart)
	if !ok {
		writeError(w, http.StatusBadRequest, "window_start must be an ISO-8601 timestamp")
		return
	}
	end, ok := normalize.ParseISO(req.WindowEnd)
	if !ok {
		writeError(w, http.StatusBadRequest, "window_end must be an ISO-8601 timestamp")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "window_end must be after window_start")
		return
	}
	var expiresAt *time.Time
	if req.ExpiresAt != "" {
		t, ok := normalize.ParseISO(req.ExpiresAt)
		if !ok {
			writeError(w, http.StatusBadRequest, "expires_at must be an ISO-8601 timestamp")
			return
		}
		expiresAt = &t
	}
	if req.Latitude != nil && req.Longitude != nil && !geo.ValidCoords(*req.Latitude, *req.Longitude) {
		writeError(w, http.StatusBadRequest, "latitude or longitude out of range")
		return
	}

	pickup, err := s.store.CreatePickup(r.Context(), &model.Pickup{
		PlaceID:      req.PlaceID,
		BusinessName: req.BusinessName,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		WindowStart:  start,
		WindowEnd:    end,
		ExpiresAt:    expiresAt,
		Notes:        req.Notes,
		ClaimRule:    req.ClaimRule,
	}, req.AuthCode)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrPINUnknown):
			writeError(w, http.StatusUnauthorized, "invalid PIN")
		case errors.Is(err, store.ErrPINUsed):
			writeError(w, http.StatusConflict, "PIN already used")
		default:
			internalError(w, "create pickup", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, pickup)
}

func (s *Server) handleWatchlistAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlaceID int64 `json:"place_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlaceID <= 0 {
		writeError(w, http.StatusBadRequest, "place_id is required")
		return
	}

	if err := s.store.AddToWatchlist(r.Context(), req.PlaceID); err != nil {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWatchlist(w http.ResponseWriter, r *http.Request) {
	results, err := s.store.ListWatchlist(r.Context())
	if err != nil {
		internalError(w, "watchlist", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"count":   len(results),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "no ingestion sources configured")
		return
	}

	start := time.Now()
	n, err := s.refresher.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrNoRecords) {
			writeError(w, http.StatusBadGateway, "refresh produced no records; existing data kept")
			return
		}
		internalError(w, "refresh", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"inserted": n,
		"duration": time.Since(start).String(),
	})
}
