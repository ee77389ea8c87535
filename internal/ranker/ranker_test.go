package ranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

const testDims = 8

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}
func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, f.err
}
func (f *fakeEmbedder) Dimensions() int { return len(f.vec) }
func (f *fakeEmbedder) Name() string    { return "fake" }

type fakeSona struct{ adjustCalled bool }

func (f *fakeSona) AdjustQueryEmbedding(vec []float32) []float32 {
	f.adjustCalled = true
	return vec
}
func (f *fakeSona) ScoreAdjustment(queryText string, meta types.Metadata) float64 { return 0 }

func fillVec(v float32) []float32 {
	out := make([]float32, testDims)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRankerSearchUsesHybridAndSona(t *testing.T) {
	store := vectorstore.New(testDims)
	_, err := store.Insert(fillVec(0.1), types.Metadata{Path: "plugin/Foo.php", IsPlugin: true, SearchText: "plugin interceptor"})
	require.NoError(t, err)

	embedder := &fakeEmbedder{vec: fillVec(0.1)}
	sona := &fakeSona{}
	r := New(store, embedder, sona)

	results, err := r.Search(context.Background(), "plugin", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, sona.adjustCalled)
}

func TestRankerSemanticSearchSkipsSona(t *testing.T) {
	store := vectorstore.New(testDims)
	_, err := store.Insert(fillVec(0.2), types.Metadata{Path: "a.php"})
	require.NoError(t, err)

	embedder := &fakeEmbedder{vec: fillVec(0.2)}
	r := New(store, embedder, nil)

	results, err := r.SemanticSearch(context.Background(), "anything", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}
