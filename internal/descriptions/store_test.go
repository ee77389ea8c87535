package descriptions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHashStability(t *testing.T) {
	h1 := ComputeHash("hello world")
	h2 := ComputeHash("hello world")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, ComputeHash("hello world!"))
}

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "descriptions.db")

	db, err := Open(dbPath)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Upsert(ctx, FileDescription{
		Path: "app/code/Vendor/Module/etc/di.xml", Hash: "abc123",
		Description: "wires the checkout repository", Model: "test-model", Timestamp: 1700000000,
	}))

	fd, ok, err := db.Get(ctx, "app/code/Vendor/Module/etc/di.xml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc123", fd.Hash)
	assert.Equal(t, "wires the checkout repository", fd.Description)

	require.NoError(t, db.Upsert(ctx, FileDescription{
		Path: "app/code/Vendor/Module/etc/di.xml", Hash: "def456",
		Description: "updated description", Model: "test-model", Timestamp: 1700000001,
	}))
	fd, ok, err = db.Get(ctx, "app/code/Vendor/Module/etc/di.xml")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "def456", fd.Hash)

	require.NoError(t, db.Upsert(ctx, FileDescription{
		Path: "app/code/Other/Module/etc/di.xml", Hash: "ghi789",
		Description: "other description", Model: "test-model", Timestamp: 1700000002,
	}))
	all, err := db.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Contains(t, all, "app/code/Vendor/Module/etc/di.xml")
	assert.Contains(t, all, "app/code/Other/Module/etc/di.xml")
}

func TestStoreGetMissing(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "descriptions.db"))
	require.NoError(t, err)
	defer db.Close()

	_, ok, err := db.Get(context.Background(), "nonexistent/di.xml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDescribeSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"content":[{"text":"wires the catalog repository"}]}`))
	}))
	defer server.Close()

	db, err := Open(filepath.Join(t.TempDir(), "descriptions.db"))
	require.NoError(t, err)
	defer db.Close()

	gen := NewGenerator("test-key", "")
	gen.client = server.Client()

	files := map[string]string{"etc/di.xml": "<config/>"}
	report, err := describeAgainst(ctx, gen, server.URL, files, db, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Generated)
	assert.Equal(t, 1, calls)

	report, err = describeAgainst(ctx, gen, server.URL, files, db, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Generated)
	assert.Equal(t, 1, calls, "unchanged content should not re-call the API")
}

// describeAgainst runs Describe against a test server URL instead of the
// real Anthropic endpoint, without requiring Describe itself to take a URL
// parameter in production use.
func describeAgainst(ctx context.Context, gen *Generator, url string, files map[string]string, db *DB, force bool) (Report, error) {
	orig := anthropicAPIURLOverride
	anthropicAPIURLOverride = url
	defer func() { anthropicAPIURLOverride = orig }()
	return gen.Describe(ctx, files, db, force)
}
