package source

import (
	"context"
	"io"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
	"github.com/kingston-caremap/caremap/internal/normalize"
)

// JSONSource reads a JSON or GeoJSON feed. The payload shape is probed for
// the record list, so bare arrays, feature collections, and API envelopes
// all work. HTTP feeds are fetched conditionally: the source remembers the
// last ETag and serves its cached records when the feed reports not
// modified.
type JSONSource struct {
	cfg  config.SourceConfig
	http fetcher.Fetcher
	ftp  *fetcher.FTPFetcher

	mu     sync.Mutex
	etag   string
	cached []any
}

func (s *JSONSource) Name() string { return s.cfg.Name }

func (s *JSONSource) Fetch(ctx context.Context) ([]any, error) {
	if s.cfg.Path == "" && httpURL(s.cfg.URL) {
		return s.fetchHTTP(ctx)
	}

	body, err := open(ctx, s.cfg, s.http, s.ftp)
	if err != nil {
		return nil, err
	}
	defer body.Close() //nolint:errcheck

	return s.decode(body)
}

// fetchHTTP revalidates the feed with If-None-Match. A 304 serves the records
// from the previous fetch without re-decoding the payload.
func (s *JSONSource) fetchHTTP(ctx context.Context) ([]any, error) {
	s.mu.Lock()
	etag, cached := s.etag, s.cached
	s.mu.Unlock()
	if cached == nil {
		etag = ""
	}

	body, newETag, changed, err := s.http.DownloadIfChanged(ctx, s.cfg.URL, etag)
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch %s", s.cfg.Name)
	}
	if !changed {
		zap.L().Debug("source: feed unchanged",
			zap.String("source", s.cfg.Name),
			zap.Int("count", len(cached)),
		)
		return cached, nil
	}
	defer body.Close() //nolint:errcheck

	records, err := s.decode(body)
	if err != nil {
		return nil, err
	}
	if newETag != "" {
		s.mu.Lock()
		s.etag, s.cached = newETag, records
		s.mu.Unlock()
	}
	return records, nil
}

func (s *JSONSource) decode(body io.Reader) ([]any, error) {
	data, err := fetcher.DecodeAny(body)
	if err != nil {
		return nil, eris.Wrapf(err, "source: decode %s", s.cfg.Name)
	}

	records := normalize.Records(data)
	if records == nil {
		return nil, eris.Errorf("source: %s payload has no record list", s.cfg.Name)
	}

	zap.L().Debug("source: fetched records",
		zap.String("source", s.cfg.Name),
		zap.Int("count", len(records)),
	)
	return applyCategory(records, s.cfg.Category), nil
}
