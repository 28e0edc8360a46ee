package source

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
)

// ShapefileSource reads point records from an ESRI shapefile. Regional GIS
// departments distribute these as zip archives bundling the .shp and .dbf.
type ShapefileSource struct {
	cfg  config.SourceConfig
	http fetcher.Fetcher
	ftp  *fetcher.FTPFetcher
}

func (s *ShapefileSource) Name() string { return s.cfg.Name }

func (s *ShapefileSource) Fetch(ctx context.Context) ([]any, error) {
	shpPath, cleanup, err := s.locate(ctx)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "source: open shapefile for %s", s.cfg.Name)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var records []any
	for reader.Next() {
		_, shape := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			if name == "" {
				continue
			}
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		rec := map[string]any{"properties": props}
		if pt, ok := shape.(*shp.Point); ok {
			rec["geometry"] = map[string]any{
				"type":        "Point",
				"coordinates": []any{pt.X, pt.Y},
			}
		}
		records = append(records, rec)
	}

	zap.L().Debug("source: fetched records",
		zap.String("source", s.cfg.Name),
		zap.Int("count", len(records)),
	)
	return applyCategory(records, s.cfg.Category), nil
}

// locate resolves the .shp path, downloading and extracting a zip archive
// first when the feed is remote or packaged.
func (s *ShapefileSource) locate(ctx context.Context) (string, func(), error) {
	path := s.cfg.Path
	var cleanup func()

	if path == "" {
		dir, err := os.MkdirTemp("", "caremap-shp-")
		if err != nil {
			return "", nil, eris.Wrap(err, "source: temp dir")
		}
		cleanup = func() { _ = os.RemoveAll(dir) }

		path = filepath.Join(dir, "feed.zip")
		if err := downloadTo(ctx, s.cfg, s.http, s.ftp, path); err != nil {
			cleanup()
			return "", nil, err
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		extractDir := path + ".extracted"
		if cleanup == nil {
			cleanup = func() { _ = os.RemoveAll(extractDir) }
		}
		if err := extractZip(path, extractDir); err != nil {
			cleanup()
			return "", nil, eris.Wrapf(err, "source: extract %s", s.cfg.Name)
		}
		shpPath, err := findFileByExt(extractDir, ".shp")
		if err != nil {
			cleanup()
			return "", nil, eris.Wrapf(err, "source: %s", s.cfg.Name)
		}
		return shpPath, cleanup, nil
	}

	return path, cleanup, nil
}

func extractZip(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return eris.Wrap(err, "create extract dir")
	}

	for _, f := range r.File {
		// Flatten: shapefile archives have no meaningful directory layout.
		name := filepath.Base(f.Name)
		if f.FileInfo().IsDir() || strings.HasPrefix(name, ".") {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open %s in zip", f.Name)
		}

		out, err := os.Create(filepath.Join(destDir, name))
		if err != nil {
			rc.Close()
			return eris.Wrapf(err, "create %s", name)
		}

		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return eris.Wrapf(err, "extract %s", name)
		}
	}
	return nil
}

func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read extract dir")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in archive", ext)
}
