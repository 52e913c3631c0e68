package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const (
	noteSuffix = ".vocab.md"
	maxLoaders = 8
)

// IsCatalogFile reports whether path names a file the loader understands.
func IsCatalogFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, noteSuffix) || strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// LoadDir walks dir for vocabulary note and YAML files, parses them
// concurrently and builds a catalog. Entries keep the order of the files
// sorted by path, so duplicate lemmas resolve the same way on every load.
func LoadDir(ctx context.Context, dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "catalog")

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if IsCatalogFile(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk catalog directory %s: %w", dir, err)
	}

	results := make([][]*Entry, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLoaders)
	for i, path := range paths {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			var entries []*Entry
			var err error
			if strings.HasSuffix(strings.ToLower(path), noteSuffix) {
				entries, err = ParseFile(path)
			} else {
				entries, err = ParseYAMLFile(path)
			}
			if err != nil {
				return err
			}
			results[i] = entries
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	var all []*Entry
	for _, entries := range results {
		all = append(all, entries...)
	}
	c, err := New(logger, all...)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", "files", len(paths), "entries", c.Len())
	return c, nil
}
