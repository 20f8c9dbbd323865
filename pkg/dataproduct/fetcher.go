// Package dataproduct stages declarative data product artifacts from the
// artifact repository into a local working directory.
package dataproduct

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// ObjectStorage is the artifact repository contract the fetcher depends on.
type ObjectStorage interface {
	// ListDirs returns the directory paths (relative to prefix) of every
	// object stored under prefix, recursively.
	ListDirs(ctx context.Context, prefix string) ([]string, error)
	// Download materializes every object under src into dest, preserving
	// the tree rooted at src's final path element.
	Download(ctx context.Context, src, dest string) error
}

// Fetcher stages declarative data product trees from object storage.
type Fetcher struct {
	storage ObjectStorage
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher over an object storage client.
func NewFetcher(storage ObjectStorage, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{storage: storage, logger: logger}
}

// Stage downloads the data product tree under storagePath into destPath.
// Any previous contents of destPath are removed first, so re-staging
// overwrites stale artifacts instead of merging with them.
func (f *Fetcher) Stage(ctx context.Context, storagePath, destPath string) error {
	if err := os.RemoveAll(destPath); err != nil {
		return fmt.Errorf("clear staging dir %s: %w", destPath, err)
	}
	if err := os.MkdirAll(destPath, 0o755); err != nil {
		return fmt.Errorf("create staging dir %s: %w", destPath, err)
	}

	dirs, err := f.storage.ListDirs(ctx, storagePath)
	if err != nil {
		return fmt.Errorf("list artifacts under %s: %w", storagePath, err)
	}

	subdirs := topLevelDirs(dirs)
	f.logger.Info("staging data product artifacts",
		"storagePath", storagePath, "dest", destPath, "subdirs", subdirs)

	for _, dir := range subdirs {
		src := storagePath + "/" + dir
		if err := f.storage.Download(ctx, src, destPath); err != nil {
			return fmt.Errorf("download %s: %w", src, err)
		}
	}
	return nil
}

// topLevelDirs deduplicates recursive directory listings down to their first
// path segment, sorted for a stable download order.
func topLevelDirs(dirs []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, dir := range dirs {
		top, _, _ := strings.Cut(dir, "/")
		if top == "" || seen[top] {
			continue
		}
		seen[top] = true
		out = append(out, top)
	}
	sort.Strings(out)
	return out
}
