// Package sona implements the online-learning feedback loop: a search
// result a user acts on nudges future rankings for similar queries, via
// three tiers of linear feature-weight adjustments plus a small LoRA
// adapter applied directly to query embeddings, regularized with EWC so
// a burst of recent feedback doesn't erase older lessons.
package sona

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/blas/blas64"

	"semsearch/internal/logging"
	"semsearch/internal/types"
)

const minLoraSimilarity = 0.90

// Signal is one feedback event reported by a client of the search
// protocol: a search followed by a specific tool call or query refinement
// that implies which kind of result the user actually wanted.
type Signal struct {
	Type                string   `json:"type"`
	Query               string   `json:"query,omitempty"`
	Timestamp           int64    `json:"timestamp,omitempty"`
	SearchResultPaths   []string `json:"search_result_paths,omitempty"`
	FollowedTool        string   `json:"followed_tool,omitempty"`
	OriginalQuery       string   `json:"original_query,omitempty"`
	RefinedQuery        string   `json:"refined_query,omitempty"`
	OriginalResultPaths []string `json:"original_result_paths,omitempty"`
}

func (s Signal) effectiveQuery() (string, bool) {
	if s.Query != "" {
		return s.Query, true
	}
	if s.OriginalQuery != "" {
		return s.OriginalQuery, true
	}
	return "", false
}

// Engine owns the learned weights, the LoRA adapter and its EWC
// regularizer for one embedding dimensionality.
type Engine struct {
	dims    int
	learned LearnedWeights
	lora    *MicroLoRA
	ewc     *EwcRegularizer
}

// New creates an Engine with empty learned state for embeddings of the
// given dimensionality.
func New(dims int) *Engine {
	return &Engine{
		dims:    dims,
		learned: newLearnedWeights(),
		lora:    NewMicroLoRA(dims),
		ewc:     NewEwcRegularizer(dims),
	}
}

// Learn updates the three-tier learned weights from a feedback signal. It
// is a no-op for signal types that don't map to a tracked feature, or when
// the signal carries no usable query.
func (e *Engine) Learn(signal Signal) {
	query, ok := signal.effectiveQuery()
	if !ok {
		logging.SonaDebug("ignoring feedback signal with no query: type=%s", signal.Type)
		return
	}
	e.learned.learn(signal.Type, query)
}

// LearnWithEmbeddings performs the standard Learn plus, when both
// embeddings are supplied, a LoRA update pulling the query embedding
// toward the target's direction, immediately regularized against drift
// from previously learned weights.
func (e *Engine) LearnWithEmbeddings(signal Signal, queryEmb, targetEmb []float32) {
	e.Learn(signal)

	if len(queryEmb) != e.dims || len(targetEmb) != e.dims {
		return
	}
	e.lora.UpdateFromSignal(queryEmb, targetEmb)
	e.ewc.Regularize(e.lora)
	e.ewc.UpdateFisher(e.lora)
}

// ScoreAdjustment returns the learned score delta for a candidate result
// given the raw query text, clamped to +/-0.15. Implements
// internal/vectorstore.SonaScorer.
func (e *Engine) ScoreAdjustment(queryText string, meta types.Metadata) float64 {
	return e.learned.scoreAdjustment(queryText, meta)
}

// StatusCounts reports the learned-weights bookkeeping the server's
// sona_status command surfaces: how many distinct query patterns and terms
// have accumulated adjustments, and how many total feedback observations
// went into each tier.
func (e *Engine) StatusCounts() (learnedPatterns, totalObservations, termPatterns, globalObservations int) {
	learnedPatterns = len(e.learned.Adjustments)
	termPatterns = len(e.learned.TermAdjustments)
	globalObservations = int(e.learned.GlobalCount)
	for _, c := range e.learned.Counts {
		totalObservations += int(c)
	}
	return
}

// AdjustQueryEmbedding applies the LoRA adapter to embedding and returns
// the result, unless the adjustment would push cosine similarity with the
// original below minLoraSimilarity — in which case the original embedding
// is returned unchanged. The result is always L2-normalized.
func (e *Engine) AdjustQueryEmbedding(embedding []float32) []float32 {
	if len(embedding) != e.dims {
		return embedding
	}

	adjusted := e.lora.Forward(embedding)
	similarity := cosineSimilarity(embedding, adjusted)
	if similarity < minLoraSimilarity {
		return embedding
	}

	l2Normalize(adjusted)
	return adjusted
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func l2Normalize(v []float32) {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}

// --- persistence ---

const persistVersionV2 byte = 2

type persistedLoRA struct {
	Dims        int       `json:"dims"`
	A           []float64 `json:"a"`
	B           []float64 `json:"b"`
	LR          float64   `json:"lr"`
	UpdateCount uint32    `json:"update_count"`
}

type persistedEwc struct {
	Fisher      []float64 `json:"fisher"`
	StarWeights []float64 `json:"star_weights"`
	Lambda      float64   `json:"lambda"`
	UpdateCount uint32    `json:"update_count"`
}

type persistedStateV2 struct {
	Dims    int            `json:"dims"`
	Learned LearnedWeights `json:"learned"`
	LoRA    persistedLoRA  `json:"lora"`
	Ewc     persistedEwc   `json:"ewc"`
}

type persistedStateV1 struct {
	Learned LearnedWeights `json:"learned"`
}

// Save persists the full engine state (learned weights, LoRA, EWC) behind a
// leading V2 version byte.
func (e *Engine) Save(path string) error {
	rawA := e.lora.a.RawMatrix()
	rawB := e.lora.b.RawMatrix()

	state := persistedStateV2{
		Dims:    e.dims,
		Learned: e.learned,
		LoRA: persistedLoRA{
			Dims:        e.dims,
			A:           append([]float64(nil), rawA.Data...),
			B:           append([]float64(nil), rawB.Data...),
			LR:          e.lora.lr,
			UpdateCount: e.lora.updateCount,
		},
		Ewc: persistedEwc{
			Fisher:      e.ewc.fisher,
			StarWeights: e.ewc.starWeights,
			Lambda:      e.ewc.lambda,
			UpdateCount: e.ewc.updateCount,
		},
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating sona state directory: %w", err)
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serializing sona state: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte(persistVersionV2)
	buf.Write(payload)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing sona state: %w", err)
	}
	return os.Rename(tmp, path)
}

// Open loads engine state from path, returning a fresh Engine if the file
// doesn't exist. A V1 file (learned weights only, from before LoRA/EWC
// existed) loads with a freshly initialized adapter.
func Open(path string, dims int) (*Engine, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(dims), nil
		}
		return nil, fmt.Errorf("reading sona state: %w", err)
	}
	if len(raw) == 0 {
		return New(dims), nil
	}

	if raw[0] == persistVersionV2 {
		var state persistedStateV2
		if err := json.Unmarshal(raw[1:], &state); err != nil {
			logging.SonaWarn("sona state format incompatible at %s: %v; starting fresh", path, err)
			return New(dims), nil
		}
		return fromStateV2(state, dims), nil
	}

	var v1 persistedStateV1
	if err := json.Unmarshal(raw, &v1); err != nil {
		logging.SonaWarn("sona state format incompatible at %s: %v; starting fresh", path, err)
		return New(dims), nil
	}
	e := New(dims)
	e.learned = v1.Learned
	return e, nil
}

func fromStateV2(state persistedStateV2, dims int) *Engine {
	e := New(dims)
	if state.Learned.Adjustments != nil {
		e.learned = state.Learned
	}

	if state.LoRA.Dims == dims && len(state.LoRA.A) == dims*loraRank && len(state.LoRA.B) == dims*loraRank {
		e.lora.a.SetRawMatrix(blas64.General{Rows: loraRank, Cols: dims, Stride: dims, Data: state.LoRA.A})
		e.lora.b.SetRawMatrix(blas64.General{Rows: dims, Cols: loraRank, Stride: loraRank, Data: state.LoRA.B})
		e.lora.lr = state.LoRA.LR
		e.lora.updateCount = state.LoRA.UpdateCount
	}

	if len(state.Ewc.Fisher) == len(e.ewc.fisher) {
		e.ewc.fisher = state.Ewc.Fisher
		e.ewc.starWeights = state.Ewc.StarWeights
		e.ewc.lambda = state.Ewc.Lambda
		e.ewc.updateCount = state.Ewc.UpdateCount
	}

	return e
}
