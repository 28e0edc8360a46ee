// Package source reads raw place records from the configured feeds: civic
// open-data endpoints, partner spreadsheets, shapefiles, and local exports.
package source

import (
	"context"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
)

// Source produces raw records from one configured feed. Records are untyped
// maps; the normalization layer resolves their fields.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]any, error)
}

// New builds a Source for the given feed configuration.
func New(cfg config.SourceConfig, httpF fetcher.Fetcher, ftpF *fetcher.FTPFetcher) (Source, error) {
	switch cfg.Kind {
	case "json", "geojson":
		return &JSONSource{cfg: cfg, http: httpF, ftp: ftpF}, nil
	case "arcgis":
		return &ArcGISSource{cfg: cfg, http: httpF}, nil
	case "xlsx":
		return &XLSXSource{cfg: cfg, http: httpF, ftp: ftpF}, nil
	case "shapefile":
		return &ShapefileSource{cfg: cfg, http: httpF, ftp: ftpF}, nil
	default:
		return nil, eris.Errorf("source: unknown kind %q for %s", cfg.Kind, cfg.Name)
	}
}

// open returns the feed's contents from its local path or URL. ftp:// URLs
// go through the FTP fetcher, everything else over HTTP.
func open(ctx context.Context, cfg config.SourceConfig, httpF fetcher.Fetcher, ftpF *fetcher.FTPFetcher) (io.ReadCloser, error) {
	if cfg.Path != "" {
		f, err := os.Open(cfg.Path)
		if err != nil {
			return nil, eris.Wrapf(err, "source: open %s", cfg.Path)
		}
		return f, nil
	}
	if cfg.URL == "" {
		return nil, eris.Errorf("source: %s has neither url nor path", cfg.Name)
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "source: parse url for %s", cfg.Name)
	}
	if u.Scheme == "ftp" {
		if ftpF == nil {
			return nil, eris.Errorf("source: %s needs ftp support", cfg.Name)
		}
		return ftpF.Download(ctx, cfg.URL)
	}
	return httpF.Download(ctx, cfg.URL)
}

// downloadTo writes the feed's remote contents to path, for readers that need
// a local file. ftp:// URLs go through the FTP fetcher, everything else over
// HTTP.
func downloadTo(ctx context.Context, cfg config.SourceConfig, httpF fetcher.Fetcher, ftpF *fetcher.FTPFetcher, path string) error {
	if cfg.URL == "" {
		return eris.Errorf("source: %s has no url", cfg.Name)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return eris.Wrapf(err, "source: parse url for %s", cfg.Name)
	}
	if u.Scheme == "ftp" {
		if ftpF == nil {
			return eris.Errorf("source: %s needs ftp support", cfg.Name)
		}
		if _, err := ftpF.DownloadToFile(ctx, cfg.URL, path); err != nil {
			return eris.Wrapf(err, "source: download %s", cfg.Name)
		}
		return nil
	}
	if _, err := httpF.DownloadToFile(ctx, cfg.URL, path); err != nil {
		return eris.Wrapf(err, "source: download %s", cfg.Name)
	}
	return nil
}

// httpURL reports whether raw is an http(s) URL, where conditional requests
// are available.
func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https")
}

// applyCategory stamps the feed-level category onto records that declare
// neither a category nor a service type of their own. Feeds like utility
// datasets describe one service type for the whole file.
func applyCategory(records []any, category string) []any {
	if category == "" {
		return records
	}
	for _, raw := range records {
		rec, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		target := rec
		if props, isMap := rec["properties"].(map[string]any); isMap {
			target = props
		}
		if !hasKeyFold(target, "category") && !hasKeyFold(target, "type") {
			target["category"] = category
		}
	}
	return records
}

func hasKeyFold(m map[string]any, key string) bool {
	for k := range m {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
