package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/indexer"
	"semsearch/internal/vectorstore"
)

const testDims = 8

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, testDims), nil
}
func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, testDims)
	}
	return out, nil
}
func (fakeEmbedder) Dimensions() int { return testDims }
func (fakeEmbedder) Name() string    { return "fake" }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectChangesAdded(t *testing.T) {
	root := t.TempDir()
	m := NewManifest(root)

	writeFile(t, filepath.Join(root, "new.php"), "<?php echo 'new';")

	changes, err := m.DetectChanges()
	require.NoError(t, err)
	assert.Equal(t, []string{"new.php"}, changes.Added)
	assert.Empty(t, changes.Modified)
	assert.Empty(t, changes.Deleted)
}

func TestDetectChangesModified(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "mod.php")
	writeFile(t, path, "<?php echo 'v1';")

	m, err := BuildManifest(root)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	writeFile(t, path, "<?php echo 'v2 longer content';")

	changes, err := m.DetectChanges()
	require.NoError(t, err)
	assert.Empty(t, changes.Added)
	assert.Equal(t, []string{"mod.php"}, changes.Modified)
	assert.Empty(t, changes.Deleted)
}

func TestDetectChangesDeleted(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.php")
	writeFile(t, path, "<?php echo 'bye';")

	m, err := BuildManifest(root)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	changes, err := m.DetectChanges()
	require.NoError(t, err)
	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Modified)
	assert.Equal(t, []string{"gone.php"}, changes.Deleted)
}

func TestDetectChangesNoneWhenStable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "stable.php"), "<?php echo 'stable';")

	m, err := BuildManifest(root)
	require.NoError(t, err)

	changes, err := m.DetectChanges()
	require.NoError(t, err)
	assert.True(t, changes.IsEmpty())
}

func TestWatcherCycleIndexesAndPersists(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.php"), "<?php class A {}")

	store := vectorstore.New(testDims)
	ix := indexer.New(root, store, fakeEmbedder{})
	require.NoError(t, ix.IndexFile(context.Background(), filepath.Join(root, "a.php")))
	dbPath := filepath.Join(t.TempDir(), "index.db")

	w := New(ix, root, dbPath, time.Hour, 0.20, false, nil)
	manifest, err := BuildManifest(root)
	require.NoError(t, err)
	w.manifest = manifest

	writeFile(t, filepath.Join(root, "b.php"), "<?php class B {}")
	w.cycle(context.Background())

	assert.Equal(t, 2, store.Len())
	assert.Equal(t, 2, w.StatusSnapshot().TrackedFiles)

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "cycle should persist the store")
}

func TestWatcherStartStop(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.php"), "<?php class A {}")

	store := vectorstore.New(testDims)
	ix := indexer.New(root, store, fakeEmbedder{})
	dbPath := filepath.Join(t.TempDir(), "index.db")

	w := New(ix, root, dbPath, 20*time.Millisecond, 0.20, false, nil)
	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.StatusSnapshot().Running)

	w.Stop()
	assert.False(t, w.StatusSnapshot().Running)
}
