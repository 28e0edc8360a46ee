// Package server exposes the HTTP API: place search and proximity queries,
// pickup-window creation and lookup, user locations, and the admin refresh
// hook.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/ingest"
	"github.com/kingston-caremap/caremap/internal/query"
	"github.com/kingston-caremap/caremap/internal/store"
)

// Server wires the HTTP handlers to the store and the query service.
type Server struct {
	store     store.Store
	query     *query.Service
	refresher *ingest.Refresher
	cfg       config.ServerConfig
}

// New creates a Server. The refresher may be nil, in which case the admin
// refresh endpoint reports that no sources are configured.
func New(st store.Store, qs *query.Service, ref *ingest.Refresher, cfg config.ServerConfig) *Server {
	return &Server{store: st, query: qs, refresher: ref, cfg: cfg}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Device-Id"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)

	r.Get("/health", s.handleHealth)
	r.Get("/search", s.handleSearch)
	r.Get("/places/nearby", s.handlePlacesNearby)
	r.Post("/location", s.handleSaveLocation)
	r.Get("/pickups/nearby", s.handlePickupsNearby)
	r.Post("/pickups", s.handleCreatePickup)
	r.Post("/watchlist/add", s.handleWatchlistAdd)
	r.Get("/watchlist", s.handleWatchlist)
	r.Post("/admin/refresh", s.handleRefresh)

	return r
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("server: shutdown", zap.Error(err))
		}
	}()

	zap.L().Info("server: listening", zap.Int("port", s.cfg.Port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server: listen")
	}
	return nil
}
