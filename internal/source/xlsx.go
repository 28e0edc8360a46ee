package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
)

// XLSXSource reads a partner agency's spreadsheet export. The header row
// names the fields; each data row becomes one record keyed by those names.
type XLSXSource struct {
	cfg  config.SourceConfig
	http fetcher.Fetcher
	ftp  *fetcher.FTPFetcher
}

func (s *XLSXSource) Name() string { return s.cfg.Name }

func (s *XLSXSource) Fetch(ctx context.Context) ([]any, error) {
	path := s.cfg.Path
	if path == "" {
		local, cleanup, err := s.download(ctx)
		if err != nil {
			return nil, err
		}
		defer cleanup()
		path = local
	}

	header, rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "source: %s", s.cfg.Name)
	}

	records := make([]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		empty := true
		for i, key := range header {
			key = strings.TrimSpace(key)
			if key == "" || i >= len(row) {
				continue
			}
			rec[key] = row[i]
			if strings.TrimSpace(row[i]) != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		records = append(records, rec)
	}

	zap.L().Debug("source: fetched records",
		zap.String("source", s.cfg.Name),
		zap.Int("count", len(records)),
	)
	return applyCategory(records, s.cfg.Category), nil
}

// download fetches the remote workbook to a temp file, since the XLSX
// reader needs random access.
func (s *XLSXSource) download(ctx context.Context) (string, func(), error) {
	dir, err := os.MkdirTemp("", "caremap-xlsx-")
	if err != nil {
		return "", nil, eris.Wrap(err, "source: temp dir")
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, "feed.xlsx")
	if err := downloadTo(ctx, s.cfg, s.http, s.ftp, path); err != nil {
		cleanup()
		return "", nil, err
	}
	return path, cleanup, nil
}
