package source

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
)

// ArcGISSource queries a feature-service layer. The city publishes its
// service locations through ArcGIS feature servers.
type ArcGISSource struct {
	cfg  config.SourceConfig
	http fetcher.Fetcher
}

func (s *ArcGISSource) Name() string { return s.cfg.Name }

// queryURL appends the standard full-export query to the layer endpoint:
// every row, every field, GeoJSON output in WGS84.
func (s *ArcGISSource) queryURL() (string, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return "", eris.Wrapf(err, "source: parse url for %s", s.cfg.Name)
	}
	if !strings.HasSuffix(u.Path, "/query") {
		u.Path = strings.TrimRight(u.Path, "/") + "/query"
	}

	q := u.Query()
	q.Set("where", "1=1")
	q.Set("outFields", "*")
	q.Set("f", "geojson")
	q.Set("outSR", "4326")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *ArcGISSource) Fetch(ctx context.Context) ([]any, error) {
	queryURL, err := s.queryURL()
	if err != nil {
		return nil, err
	}

	body, err := s.http.Download(ctx, queryURL)
	if err != nil {
		return nil, eris.Wrapf(err, "source: fetch %s", s.cfg.Name)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", s.cfg.Name)
	}

	records, err := decodeFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s", s.cfg.Name)
	}

	zap.L().Debug("source: fetched records",
		zap.String("source", s.cfg.Name),
		zap.Int("count", len(records)),
	)
	return applyCategory(records, s.cfg.Category), nil
}
