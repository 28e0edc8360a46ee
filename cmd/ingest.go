package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kingston-caremap/caremap/internal/config"
	"github.com/kingston-caremap/caremap/internal/fetcher"
	"github.com/kingston-caremap/caremap/internal/model"
	"github.com/kingston-caremap/caremap/internal/source"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [paths...]",
	Short: "Import place records from files or the configured feeds",
	Long:  "With paths, imports each file (kind inferred from the extension) and prints a per-file report. Without arguments, imports every configured feed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if len(args) == 0 {
			if len(env.Sources) == 0 {
				return eris.New("no paths given and no sources configured")
			}
			report, err := env.Importer.ImportSources(ctx, env.Sources)
			if err != nil {
				return err
			}
			printReport("total", report)
			return nil
		}

		paths, err := expandPaths(args)
		if err != nil {
			return err
		}

		total := &model.Report{}
		httpF := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: cfg.Ingest.Timeout()})
		for _, path := range paths {
			kind, err := kindFromExt(path)
			if err != nil {
				return err
			}
			src, err := source.New(config.SourceConfig{
				Name: filepath.Base(path),
				Kind: kind,
				Path: path,
			}, httpF, nil)
			if err != nil {
				return err
			}

			records, err := src.Fetch(ctx)
			if err != nil {
				return eris.Wrapf(err, "read %s", path)
			}
			report, err := env.Importer.Import(ctx, src.Name(), records)
			if err != nil {
				return eris.Wrapf(err, "import %s", path)
			}
			printReport(path, report)
			total.Merge(*report)
			total.TotalPlaces = report.TotalPlaces
		}

		if len(paths) > 1 {
			printReport("total", total)
		}
		return nil
	},
}

// expandPaths resolves directory arguments to the *.json/*.geojson files they
// contain, in sorted order, dropping repeats while keeping first-seen order.
func expandPaths(args []string) ([]string, error) {
	var paths []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "stat %s", arg)
		}
		if !info.IsDir() {
			add(arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, eris.Wrapf(err, "read dir %s", arg)
		}
		var found []string
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(e.Name())) {
			case ".json", ".geojson":
				found = append(found, filepath.Join(arg, e.Name()))
			}
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return paths, nil
}

// kindFromExt maps a file extension to a source kind.
func kindFromExt(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json", nil
	case ".geojson":
		return "geojson", nil
	case ".xlsx":
		return "xlsx", nil
	case ".shp", ".zip":
		return "shapefile", nil
	default:
		return "", eris.Errorf("cannot infer source kind for %s", path)
	}
}

func printReport(label string, r *model.Report) {
	fmt.Printf("%s: imported %d, skipped %d (store total %d)\n",
		label, r.Imported, r.Skipped, r.TotalPlaces)
	for reason, n := range r.SkipReasons {
		fmt.Printf("  %s: %d\n", reason, n)
	}
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
