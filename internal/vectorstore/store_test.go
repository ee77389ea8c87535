package vectorstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/types"
)

const testDims = 8

func vec(fill float32) []float32 {
	v := make([]float32, testDims)
	for i := range v {
		v[i] = fill
	}
	return v
}

func TestInsertSearch(t *testing.T) {
	s := New(testDims)

	id, err := s.Insert(vec(0.1), types.Metadata{Path: "test.php", FileType: "php", SearchText: "test"})
	require.NoError(t, err)

	results, err := s.Search(vec(0.1), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].ID)
	assert.Equal(t, "test.php", results[0].Metadata.Path)
}

func TestTombstoneFiltersSearch(t *testing.T) {
	s := New(testDims)
	id, err := s.Insert(vec(0.2), types.Metadata{Path: "a.php"})
	require.NoError(t, err)
	_, err = s.Insert(vec(0.9), types.Metadata{Path: "b.php"})
	require.NoError(t, err)

	s.Tombstone(id)

	results, err := s.Search(vec(0.2), 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, id, r.ID)
	}
}

func TestRemoveByPath(t *testing.T) {
	s := New(testDims)
	_, _ = s.Insert(vec(0.3), types.Metadata{Path: "dup.php"})
	_, _ = s.Insert(vec(0.31), types.Metadata{Path: "dup.php"})
	_, _ = s.Insert(vec(0.9), types.Metadata{Path: "other.php"})

	ids := s.RemoveByPath("dup.php")
	assert.Len(t, ids, 2)
	assert.Greater(t, s.TombstoneRatio(), 0.0)
}

func TestCompactRebuilds(t *testing.T) {
	s := New(testDims)
	id1, _ := s.Insert(vec(0.1), types.Metadata{Path: "one.php"})
	_, _ = s.Insert(vec(0.2), types.Metadata{Path: "two.php"})

	s.Tombstone(id1)
	require.True(t, s.TombstoneRatio() > 0)

	s.Compact()
	assert.Equal(t, 0.0, s.TombstoneRatio())
	assert.Equal(t, 1, s.Len())

	results, err := s.Search(vec(0.2), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "two.php", results[0].Metadata.Path)
}

func TestV2SaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	s := New(testDims)
	id1, _ := s.Insert(vec(0.1), types.Metadata{Path: "keep.php"})
	id2, _ := s.Insert(vec(0.5), types.Metadata{Path: "dead.php"})
	s.Tombstone(id2)

	require.NoError(t, s.Save(path))

	loaded, err := Open(path, testDims)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	results, err := loaded.Search(vec(0.1), 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id1, results[0].ID)
}

func TestBatchInsert(t *testing.T) {
	s := New(testDims)
	items := []Item{
		{Vector: vec(0.1), Metadata: types.Metadata{Path: "a.php"}},
		{Vector: vec(0.2), Metadata: types.Metadata{Path: "b.php"}},
		{Vector: vec(0.3), Metadata: types.Metadata{Path: "c.php"}},
	}
	ids, err := s.InsertBatch(items)
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, 3, s.Len())
}

func TestOpenMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "nope.db"), testDims)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestOpenFormatChangedStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.db")
	require.NoError(t, os.WriteFile(path, []byte{persistVersionV2, '{', 'n', 'o', 't', 'j', 's', 'o', 'n'}, 0o644))

	s, err := Open(path, testDims)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}
