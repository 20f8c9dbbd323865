package dataproduct

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStorage keeps objects as prefix-relative key -> content and materializes
// them the way the S3 implementation does.
type fakeStorage struct {
	objects map[string]string // full key -> content
}

func (f *fakeStorage) ListDirs(_ context.Context, prefix string) ([]string, error) {
	var dirs []string
	for key := range f.objects {
		if !strings.HasPrefix(key, prefix+"/") {
			continue
		}
		rel := strings.TrimPrefix(key, prefix+"/")
		if dir := path.Dir(rel); dir != "." {
			dirs = append(dirs, dir)
		}
	}
	return dirs, nil
}

func (f *fakeStorage) Download(_ context.Context, src, dest string) error {
	root := filepath.Join(dest, path.Base(src))
	for key, content := range f.objects {
		if !strings.HasPrefix(key, src+"/") {
			continue
		}
		rel := strings.TrimPrefix(key, src+"/")
		local := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(local, []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}

func TestStageDownloadsTopLevelDirs(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{
		"dataproducts/orders/1/pdm/tables.yaml":     "tables",
		"dataproducts/orders/1/ldm/datasets.yaml":   "datasets",
		"dataproducts/orders/1/ldm/dates/cal.yaml":  "calendar",
		"dataproducts/orders/1/am/dashboards.yaml":  "dashboards",
		"dataproducts/unrelated/1/pdm/tables.yaml":  "other product",
		"dataproducts/orders/1/am/metrics/rev.yaml": "revenue",
	}}
	dest := t.TempDir()

	f := NewFetcher(storage, nil)
	require.NoError(t, f.Stage(context.Background(), "dataproducts/orders/1", dest))

	for _, rel := range []string{
		"pdm/tables.yaml", "ldm/datasets.yaml", "ldm/dates/cal.yaml",
		"am/dashboards.yaml", "am/metrics/rev.yaml",
	} {
		_, err := os.Stat(filepath.Join(dest, filepath.FromSlash(rel)))
		assert.NoError(t, err, "expected staged file %s", rel)
	}
	_, err := os.Stat(filepath.Join(dest, "unrelated"))
	assert.True(t, os.IsNotExist(err), "only the requested product may be staged")
}

func TestStageIsDestructiveThenFresh(t *testing.T) {
	dest := t.TempDir()
	ctx := context.Background()

	first := &fakeStorage{objects: map[string]string{
		"products/p/v1/pdm/old.yaml": "old",
	}}
	require.NoError(t, NewFetcher(first, nil).Stage(ctx, "products/p/v1", dest))

	second := &fakeStorage{objects: map[string]string{
		"products/p/v1/pdm/new.yaml": "new",
	}}
	require.NoError(t, NewFetcher(second, nil).Stage(ctx, "products/p/v1", dest))

	_, err := os.Stat(filepath.Join(dest, "pdm", "old.yaml"))
	assert.True(t, os.IsNotExist(err), "stale content must be removed")
	content, err := os.ReadFile(filepath.Join(dest, "pdm", "new.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(content))
}

func TestStageIsIdempotent(t *testing.T) {
	storage := &fakeStorage{objects: map[string]string{
		"products/p/v1/pdm/tables.yaml": "tables",
	}}
	dest := t.TempDir()
	ctx := context.Background()

	f := NewFetcher(storage, nil)
	require.NoError(t, f.Stage(ctx, "products/p/v1", dest))
	require.NoError(t, f.Stage(ctx, "products/p/v1", dest))

	content, err := os.ReadFile(filepath.Join(dest, "pdm", "tables.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "tables", string(content))
}

func TestTopLevelDirs(t *testing.T) {
	got := topLevelDirs([]string{"ldm/dates", "pdm", "ldm", "am/metrics", "am"})
	assert.Equal(t, []string{"am", "ldm", "pdm"}, got)
}
