// Package ranker wires the embedder, the SONA online-learning engine and
// the vector store into the query-time pipeline: embed the query, let SONA
// nudge the query embedding toward previously rewarded results, run a
// hybrid HNSW search with SONA's score adjustment folded in, and return
// the ranked top-k.
package ranker

import (
	"context"
	"fmt"

	"semsearch/internal/embedding"
	"semsearch/internal/logging"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

// SonaEngine is the subset of internal/sona.Engine the ranker depends on.
type SonaEngine interface {
	AdjustQueryEmbedding(vec []float32) []float32
	ScoreAdjustment(queryText string, meta types.Metadata) float64
}

// Ranker answers queries against one vector store, optionally adjusting
// the query embedding and every candidate's score through a SonaEngine.
type Ranker struct {
	store    *vectorstore.Store
	embedder embedding.EmbeddingEngine
	sona     SonaEngine
}

// New builds a Ranker. sona may be nil, in which case queries skip LoRA
// adjustment and score adjustment entirely — pure hybrid search.
func New(store *vectorstore.Store, embedder embedding.EmbeddingEngine, sona SonaEngine) *Ranker {
	return &Ranker{store: store, embedder: embedder, sona: sona}
}

// Search embeds query, applies the SONA LoRA adjustment if configured, and
// runs a hybrid search returning at most k results ranked by
// semantic + keyword/type boost + SONA adjustment.
func (r *Ranker) Search(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	if r.sona != nil {
		queryVec = r.sona.AdjustQueryEmbedding(queryVec)
	}

	var scorer vectorstore.SonaScorer
	if r.sona != nil {
		scorer = r.sona
	}

	results, err := r.store.HybridSearch(queryVec, query, k, scorer)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}

	logging.RankerDebug("query=%q k=%d results=%d", query, k, len(results))
	return results, nil
}

// SemanticSearch runs pure semantic k-NN, bypassing keyword boosts and
// SONA adjustment entirely, for callers that want raw embedding
// similarity.
func (r *Ranker) SemanticSearch(ctx context.Context, query string, k int) ([]types.SearchResult, error) {
	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return r.store.Search(queryVec, k)
}
