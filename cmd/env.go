package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/fetcher"
	"github.com/kingston-caremap/caremap/internal/ingest"
	"github.com/kingston-caremap/caremap/internal/query"
	"github.com/kingston-caremap/caremap/internal/source"
	"github.com/kingston-caremap/caremap/internal/store"
	"github.com/kingston-caremap/caremap/pkg/places"
)

// appEnv holds the initialized store, sources, and services shared by the
// serve/ingest/refresh commands.
type appEnv struct {
	Store     store.Store
	Query     *query.Service
	Importer  *ingest.Importer
	Refresher *ingest.Refresher
	Sources   []source.Source
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, runs the schema migration, and builds the
// configured sources and services. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sources, err := buildSources()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	env := &appEnv{
		Store:    st,
		Query:    query.NewService(st, cfg.Query),
		Importer: ingest.NewImporter(st),
		Sources:  sources,
	}
	if len(sources) > 0 {
		env.Refresher = ingest.NewRefresher(st, sources)
	}
	return env, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "caremap.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// buildSources constructs the configured feed sources plus, when an API key
// is present, the commercial places source.
func buildSources() ([]source.Source, error) {
	httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout:      cfg.Ingest.Timeout(),
		RateLimiters: fetcher.DefaultRateLimiters(),
	})
	ftpF := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: cfg.Ingest.Timeout()})

	var sources []source.Source
	for _, sc := range cfg.Ingest.Sources {
		src, err := source.New(sc, httpF, ftpF)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}

	if cfg.Places.Key != "" {
		client := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))
		sources = append(sources, source.NewPlacesSource(cfg.Places, client))
		zap.L().Info("places api source enabled", zap.Int("queries", len(cfg.Places.Queries)))
	} else {
		zap.L().Debug("CAREMAP_PLACES_KEY not set, places api source disabled")
	}

	return sources, nil
}
