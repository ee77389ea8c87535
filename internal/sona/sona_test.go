package sona

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/types"
)

const testDims = 16

func makeMeta(isPlugin, isObserver, isController bool) types.Metadata {
	return types.Metadata{FileType: "php", IsPlugin: isPlugin, IsObserver: isObserver, IsController: isController}
}

func TestPatternHashStability(t *testing.T) {
	h1 := PatternHash("checkout cart totals")
	h2 := PatternHash("checkout cart totals")
	assert.Equal(t, h1, h2)

	h3 := PatternHash("totals cart checkout")
	assert.Equal(t, h1, h3)
}

func TestLearnAndAdjust(t *testing.T) {
	e := New(testDims)
	e.Learn(Signal{Type: "refinement_to_plugin", Query: "checkout cart totals"})

	meta := makeMeta(true, false, false)
	adj := e.ScoreAdjustment("checkout cart totals", meta)
	assert.Greater(t, adj, 0.0)

	other := makeMeta(false, false, false)
	assert.Less(t, e.ScoreAdjustment("checkout cart totals", other), adj)
}

func TestAdjustmentCapped(t *testing.T) {
	e := New(testDims)
	for i := 0; i < 200; i++ {
		e.Learn(Signal{Type: "refinement_to_plugin", Query: "repeated query term"})
	}
	meta := makeMeta(true, false, false)
	adj := e.ScoreAdjustment("repeated query term", meta)
	assert.LessOrEqual(t, adj, maxAdjustment+1e-9)
}

func TestLearningRateDecay(t *testing.T) {
	e := New(testDims)
	e.Learn(Signal{Type: "refinement_to_plugin", Query: "alpha beta"})
	first := e.learned.Adjustments[PatternHash("alpha beta")]["is_plugin"]

	e.Learn(Signal{Type: "refinement_to_plugin", Query: "alpha beta"})
	second := e.learned.Adjustments[PatternHash("alpha beta")]["is_plugin"]

	assert.Less(t, second-first, first)
}

func TestEmptyReturnsZero(t *testing.T) {
	e := New(testDims)
	assert.Equal(t, 0.0, e.ScoreAdjustment("anything", makeMeta(true, true, true)))
}

func TestPersistenceRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sona.db")

	e := New(testDims)
	e.Learn(Signal{Type: "refinement_to_observer", Query: "order placed observer"})
	require.NoError(t, e.Save(path))

	loaded, err := Open(path, testDims)
	require.NoError(t, err)

	meta := makeMeta(false, true, false)
	assert.Equal(t, e.ScoreAdjustment("order placed observer", meta), loaded.ScoreAdjustment("order placed observer", meta))
}

func TestLoraDefaultInit(t *testing.T) {
	l := NewMicroLoRA(testDims)
	assert.Equal(t, testDims, l.a.RawMatrix().Cols)
	assert.Equal(t, loraRank, l.a.RawMatrix().Rows)
}

func TestLoraForwardPreservesDim(t *testing.T) {
	l := NewMicroLoRA(testDims)
	emb := make([]float32, testDims)
	for i := range emb {
		emb[i] = 0.1
	}
	out := l.Forward(emb)
	assert.Len(t, out, testDims)
}

func TestLoraForwardModifiesEmbedding(t *testing.T) {
	l := NewMicroLoRA(testDims)
	emb := make([]float32, testDims)
	for i := range emb {
		emb[i] = 0.1
	}
	out := l.Forward(emb)
	assert.NotEqual(t, emb, out)
}

func TestLoraUpdateChangesWeights(t *testing.T) {
	l := NewMicroLoRA(testDims)
	before := append([]float64(nil), l.a.RawMatrix().Data...)

	query := make([]float32, testDims)
	target := make([]float32, testDims)
	for i := range query {
		query[i] = 0.1
		target[i] = 0.9
	}
	l.UpdateFromSignal(query, target)

	assert.NotEqual(t, before, l.a.RawMatrix().Data)
}

func TestAdjustQueryEmbedding(t *testing.T) {
	e := New(testDims)
	emb := make([]float32, testDims)
	for i := range emb {
		emb[i] = 0.25
	}
	out := e.AdjustQueryEmbedding(emb)
	assert.Len(t, out, testDims)
}

func TestEwcDefault(t *testing.T) {
	ewc := NewEwcRegularizer(testDims)
	l := NewMicroLoRA(testDims)
	assert.Equal(t, 0.0, ewc.Penalty(l))
}

func TestEwcPenaltyZeroInitially(t *testing.T) {
	ewc := NewEwcRegularizer(testDims)
	l := NewMicroLoRA(testDims)
	ewc.UpdateFisher(l)
	assert.Equal(t, 0.0, ewc.Penalty(l))
}

func TestEwcFisherUpdate(t *testing.T) {
	ewc := NewEwcRegularizer(testDims)
	l := NewMicroLoRA(testDims)
	ewc.UpdateFisher(l)

	query := make([]float32, testDims)
	target := make([]float32, testDims)
	for i := range query {
		query[i] = 0.1
		target[i] = 0.5
	}
	l.UpdateFromSignal(query, target)
	ewc.UpdateFisher(l)

	assert.GreaterOrEqual(t, ewc.Penalty(l), 0.0)

	l.UpdateFromSignal(query, target)
	assert.Greater(t, ewc.Penalty(l), 0.0)
}

func TestEwcRegularizePullsTowardStar(t *testing.T) {
	ewc := NewEwcRegularizer(testDims)
	l := NewMicroLoRA(testDims)
	ewc.UpdateFisher(l)

	query := make([]float32, testDims)
	target := make([]float32, testDims)
	for i := range query {
		query[i] = 0.1
		target[i] = 0.9
	}
	l.UpdateFromSignal(query, target)
	ewc.UpdateFisher(l)

	l.UpdateFromSignal(query, target)
	before := l.flatten()
	ewc.Regularize(l)
	after := l.flatten()

	assert.NotEqual(t, before, after)
}

func TestV2PersistenceWithLora(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sona_lora.db")

	e := New(testDims)
	query := make([]float32, testDims)
	target := make([]float32, testDims)
	for i := range query {
		query[i] = 0.2
		target[i] = 0.8
	}
	e.LearnWithEmbeddings(Signal{Type: "refinement_to_plugin", Query: "lora test"}, query, target)
	require.NoError(t, e.Save(path))

	loaded, err := Open(path, testDims)
	require.NoError(t, err)
	assert.Equal(t, e.lora.a.RawMatrix().Data, loaded.lora.a.RawMatrix().Data)
	assert.Equal(t, e.lora.updateCount, loaded.lora.updateCount)
}

func TestLearnWithEmbeddings(t *testing.T) {
	e := New(testDims)
	query := make([]float32, testDims)
	target := make([]float32, testDims)
	for i := range query {
		query[i] = 0.3
		target[i] = 0.6
	}
	e.LearnWithEmbeddings(Signal{Type: "refinement_to_controller", Query: "index action"}, query, target)

	assert.Equal(t, uint32(1), e.lora.updateCount)
	assert.Greater(t, e.ScoreAdjustment("index action", makeMeta(false, false, true)), 0.0)
}
