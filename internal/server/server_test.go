package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/ranker"
	"semsearch/internal/sona"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

const testDims = 8

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, testDims)
	v[0] = 1
	return v, nil
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

func newTestServer(t *testing.T) (*Server, *vectorstore.Store) {
	t.Helper()
	store := vectorstore.New(testDims)
	_, err := store.Insert([]float32{1, 0, 0, 0, 0, 0, 0, 0}, types.Metadata{
		Path: "app/code/Vendor/Module/Controller/Index/Index.php", FileType: "php", IsController: true,
	})
	require.NoError(t, err)

	r := ranker.New(store, fakeEmbedder{}, nil)
	sonaEng := sona.New(testDims)
	return New(r, store, nil, sonaEng, "", nil, 5), store
}

func readResponses(t *testing.T, out *bytes.Buffer, n int) []map[string]interface{} {
	t.Helper()
	scanner := bufio.NewScanner(out)
	var lines []map[string]interface{}
	for scanner.Scan() && len(lines) < n {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		lines = append(lines, m)
	}
	return lines
}

func TestRunWritesReadinessLine(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString("")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 1)
	require.Len(t, lines, 1)
	assert.Equal(t, true, lines[0]["ok"])
	assert.Equal(t, true, lines[0]["ready"])
	assert.Equal(t, float64(1), lines[0]["vectors"])
}

func TestRunSearchCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(`{"command":"search","query":"index controller","limit":5}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	require.Len(t, lines, 2)
	resp := lines[1]
	assert.Equal(t, true, resp["ok"])
	data, ok := resp["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 1)
}

func TestRunStatsCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(`{"command":"stats"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	data := lines[1]["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["vectors"])
}

func TestRunWatcherStatusWithoutWatcher(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(`{"command":"watcher_status"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	assert.Equal(t, false, lines[1]["ok"])
	assert.Contains(t, lines[1]["error"], "watcher not running")
}

func TestRunFeedbackCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(`{"command":"feedback","signals":[{"type":"refinement_to_plugin","query":"checkout totals"}]}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	require.True(t, lines[1]["ok"].(bool))
	data := lines[1]["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["learned"])
}

func TestRunSonaStatusReflectsFeedback(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(
		`{"command":"feedback","signals":[{"type":"refinement_to_plugin","query":"checkout totals"}]}` + "\n" +
			`{"command":"sona_status"}` + "\n",
	)
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 3)
	require.Len(t, lines, 3)
	status := lines[2]["data"].(map[string]interface{})
	assert.Equal(t, float64(1), status["learned_patterns"])
	assert.Equal(t, float64(1), status["total_observations"])
}

func TestRunMalformedJSONReturnsError(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString("{not json}\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	assert.Equal(t, false, lines[1]["ok"])
	assert.Contains(t, lines[1]["error"], "malformed request")
}

func TestRunUnknownCommandReturnsError(t *testing.T) {
	srv, _ := newTestServer(t)
	in := bytes.NewBufferString(`{"command":"nonsense"}` + "\n")
	var out bytes.Buffer

	require.NoError(t, srv.Run(context.Background(), in, &out))

	lines := readResponses(t, &out, 2)
	assert.Equal(t, false, lines[1]["ok"])
	assert.Contains(t, lines[1]["error"], "unknown command")
}
