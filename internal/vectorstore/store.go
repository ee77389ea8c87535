// Package vectorstore wraps an HNSW approximate nearest-neighbor index with
// the bookkeeping a long-lived code index needs on top of raw similarity
// search: tombstoned soft-delete, compaction, and versioned persistence.
package vectorstore

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/coder/hnsw"

	"semsearch/internal/logging"
	"semsearch/internal/types"
)

// HNSW tuning knobs. M and EfSearch map directly onto coder/hnsw's Graph
// fields; MaxLayer and EfConstruction describe the shape of the graph the
// original implementation built and are recorded here for documentation
// only; they are not persisted, and this library derives layer
// assignment from Ml rather than a separate construction-time parameter.
const (
	HNSWM             = 32
	HNSWMaxLayer      = 16
	HNSWEfConstruction = 200
	HNSWMinCapacity   = 1000
	efSearchFloor     = 50

	compactThreshold = 0.20
)

// ErrFormatChanged is returned by load when a persisted file exists but its
// schema is incompatible with the current version. Open does not return it:
// it logs the error, removes the file and starts with a fresh, empty store.
type ErrFormatChanged struct {
	Path string
	Err  error
}

func (e *ErrFormatChanged) Error() string {
	return fmt.Sprintf("vector store format changed at %s: %v (re-index required)", e.Path, e.Err)
}

func (e *ErrFormatChanged) Unwrap() error { return e.Err }

// ErrDimensionMismatch is returned by Insert/Search when a vector's length
// doesn't match the store's configured dimensionality.
type ErrDimensionMismatch struct {
	Want, Got int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// Store is a tombstone-aware HNSW vector index keyed by an internal
// monotonic uint64 ID. It is safe for concurrent use.
type Store struct {
	mu sync.RWMutex

	dims  int
	graph *hnsw.Graph[uint64]

	vectors    map[uint64][]float32
	metadata   map[uint64]types.Metadata
	tombstones map[uint64]struct{}
	nextID     uint64
}

// New creates an empty store for vectors of the given dimensionality.
func New(dims int) *Store {
	return &Store{
		dims:       dims,
		graph:      newGraph(),
		vectors:    make(map[uint64][]float32),
		metadata:   make(map[uint64]types.Metadata),
		tombstones: make(map[uint64]struct{}),
	}
}

func newGraph() *hnsw.Graph[uint64] {
	g := hnsw.NewGraph[uint64]()
	g.M = HNSWM
	g.EfSearch = efSearchFloor
	g.Distance = hnsw.CosineDistance
	return g
}

// Insert adds one vector with its metadata and returns its assigned ID.
func (s *Store) Insert(vector []float32, meta types.Metadata) (uint64, error) {
	if len(vector) != s.dims {
		return 0, &ErrDimensionMismatch{Want: s.dims, Got: len(vector)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	vec := make([]float32, len(vector))
	copy(vec, vector)

	s.graph.Add(hnsw.MakeNode(id, vec))
	s.vectors[id] = vec
	s.metadata[id] = meta

	return id, nil
}

// Item is one (vector, metadata) pair for batch insertion.
type Item struct {
	Vector   []float32
	Metadata types.Metadata
}

// InsertBatch inserts many items at once, returning their assigned IDs in
// order. All vectors must share the store's configured dimensionality.
func (s *Store) InsertBatch(items []Item) ([]uint64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	for _, it := range items {
		if len(it.Vector) != s.dims {
			return nil, &ErrDimensionMismatch{Want: s.dims, Got: len(it.Vector)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, len(items))
	nodes := make([]hnsw.Node[uint64], len(items))
	for i, it := range items {
		id := s.nextID + uint64(i)
		vec := make([]float32, len(it.Vector))
		copy(vec, it.Vector)

		ids[i] = id
		s.vectors[id] = vec
		s.metadata[id] = it.Metadata
		nodes[i] = hnsw.MakeNode(id, vec)
	}
	s.graph.Add(nodes...)
	s.nextID += uint64(len(items))

	return ids, nil
}

// Tombstone marks a single ID as deleted without touching the graph.
func (s *Store) Tombstone(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[id] = struct{}{}
}

// RemoveByPath tombstones every entry whose metadata path equals path,
// returning the affected IDs.
func (s *Store) RemoveByPath(path string) []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uint64
	for id, m := range s.metadata {
		if m.Path == path {
			ids = append(ids, id)
			s.tombstones[id] = struct{}{}
		}
	}
	return ids
}

// TombstoneRatio reports the fraction of stored vectors that are tombstoned.
func (s *Store) TombstoneRatio() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.vectors) == 0 {
		return 0
	}
	return float64(len(s.tombstones)) / float64(len(s.vectors))
}

// NeedsCompaction reports whether the tombstone ratio exceeds the threshold
// at which a rebuild is worth its cost.
func (s *Store) NeedsCompaction() bool {
	return s.TombstoneRatio() > compactThreshold
}

// Compact rebuilds the HNSW graph from surviving vectors and purges
// tombstoned entries from every map. Safe to call unconditionally; it is a
// no-op when there is nothing tombstoned.
func (s *Store) Compact() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactLocked()
}

func (s *Store) compactLocked() {
	if len(s.tombstones) == 0 {
		return
	}
	for id := range s.tombstones {
		delete(s.metadata, id)
		delete(s.vectors, id)
	}

	g := newGraph()
	if len(s.vectors) > 0 {
		nodes := make([]hnsw.Node[uint64], 0, len(s.vectors))
		for id, vec := range s.vectors {
			nodes = append(nodes, hnsw.MakeNode(id, vec))
		}
		g.Add(nodes...)
	}
	s.graph = g
	s.tombstones = make(map[uint64]struct{})

	logging.VectorStoreDebug("compacted store, %d live vectors remain", len(s.vectors))
}

// Clear discards every vector, tombstone and metadata record and resets the
// graph and ID counter, leaving the store as if newly created. Used by a
// full reindex, which rebuilds the index from scratch rather than
// reconciling against the previous run.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.graph = newGraph()
	s.vectors = make(map[uint64][]float32)
	s.metadata = make(map[uint64]types.Metadata)
	s.tombstones = make(map[uint64]struct{})
	s.nextID = 0
}

// Len reports the number of live (non-tombstoned) vectors.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.metadata)
	for id := range s.tombstones {
		if _, ok := s.metadata[id]; ok {
			n--
		}
	}
	return n
}

func searchEf(fetch int) int {
	if ef := fetch * 2; ef > efSearchFloor {
		return ef
	}
	return efSearchFloor
}

// Search performs pure semantic nearest-neighbor search, filtering
// tombstoned hits and resolving scores as 1 - cosine distance.
func (s *Store) Search(query []float32, k int) ([]types.SearchResult, error) {
	if len(query) != s.dims {
		return nil, &ErrDimensionMismatch{Want: s.dims, Got: len(query)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	extra := 0
	if len(s.tombstones) > 0 {
		extra = min(len(s.tombstones), k)
	}
	fetch := k + extra
	s.graph.EfSearch = searchEf(fetch)

	hits := s.graph.Search(query, fetch)

	out := make([]types.SearchResult, 0, k)
	for _, h := range hits {
		if _, dead := s.tombstones[h.Key]; dead {
			continue
		}
		meta, ok := s.metadata[h.Key]
		if !ok {
			continue
		}
		out = append(out, types.SearchResult{
			ID:       h.Key,
			Score:    1 - float64(s.graph.Distance(query, h.Value)),
			Metadata: meta,
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// SonaScorer is the subset of internal/sona's SonaEngine the ranker needs,
// kept narrow here to avoid vectorstore importing sona (sona already
// imports types, and a two-way dependency would cycle).
type SonaScorer interface {
	ScoreAdjustment(queryText string, meta types.Metadata) float64
}

const maxKeywordBonus = 0.45

// HybridSearch combines semantic similarity with keyword/type-boost
// re-ranking and an optional SONA score adjustment. queryText is the raw
// user query used for keyword matching; it is independent of the embedded
// query vector.
func (s *Store) HybridSearch(query []float32, queryText string, k int, sona SonaScorer) ([]types.SearchResult, error) {
	if len(query) != s.dims {
		return nil, &ErrDimensionMismatch{Want: s.dims, Got: len(query)}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	extra := 0
	if len(s.tombstones) > 0 {
		extra = min(len(s.tombstones), k)
	}
	candidates := k*3 + extra
	ef := candidates * 2
	if ef < 64 {
		ef = 64
	}
	s.graph.EfSearch = ef

	hits := s.graph.Search(query, candidates)

	queryLower := strings.ToLower(queryText)
	queryTerms := strings.Fields(queryLower)

	wantsDiXML := strings.Contains(queryLower, "di.xml")
	wantsDBSchema := strings.Contains(queryLower, "db_schema")
	wantsHelper := containsTerm(queryTerms, "helper")
	wantsPlugin := containsTerm(queryTerms, "plugin")
	wantsRepository := containsTerm(queryTerms, "repository")
	wantsSetup := containsTerm(queryTerms, "setup")
	wantsObserver := containsTerm(queryTerms, "observer")

	scored := make([]types.SearchResult, 0, len(hits))
	for _, h := range hits {
		if _, dead := s.tombstones[h.Key]; dead {
			continue
		}
		meta, ok := s.metadata[h.Key]
		if !ok {
			continue
		}

		semantic := 1 - float64(s.graph.Distance(query, h.Value))

		pathLower := strings.ToLower(meta.Path)
		searchLower := strings.ToLower(meta.SearchText)
		classLower := strings.ToLower(meta.ClassName)
		mtypeLower := strings.ToLower(meta.MagentoType)

		var bonus float64
		var matched int
		for _, term := range queryTerms {
			if len(term) < 3 {
				continue
			}
			if strings.Contains(pathLower, term) {
				bonus += 0.08
				matched++
			}
			if strings.Contains(searchLower, term) {
				bonus += 0.03
				matched++
			}
			if classLower != "" && strings.Contains(classLower, term) {
				bonus += 0.06
				matched++
			}
			if mtypeLower != "" && (strings.Contains(mtypeLower, term) || strings.ReplaceAll(term, ".", "_") == mtypeLower) {
				bonus += 0.10
				matched++
			}
		}

		mtype := meta.MagentoType
		if wantsDiXML && (mtype == "di_config" || strings.HasSuffix(pathLower, "di.xml")) {
			bonus += 0.20
		}
		if wantsDBSchema && (mtype == "db_schema" || strings.HasSuffix(pathLower, "db_schema.xml")) {
			bonus += 0.20
		}
		if wantsHelper && (mtype == "helper" || strings.Contains(pathLower, "/helper/")) {
			bonus += 0.15
		}
		if wantsPlugin && (mtype == "plugin" || strings.Contains(pathLower, "/plugin/") || meta.IsPlugin) {
			bonus += 0.15
		}
		if wantsRepository && (mtype == "repository" || meta.IsRepository) {
			bonus += 0.15
		}
		if wantsSetup && (mtype == "setup" || strings.Contains(pathLower, "/setup/")) {
			bonus += 0.15
		}
		if wantsObserver && (mtype == "observer" || strings.Contains(pathLower, "/observer/") || meta.IsObserver) {
			bonus += 0.15
		}
		if matched >= 3 {
			bonus += 0.05
		}
		if bonus > maxKeywordBonus {
			bonus = maxKeywordBonus
		}

		var sonaAdj float64
		if sona != nil {
			sonaAdj = sona.ScoreAdjustment(queryText, meta)
		}

		scored = append(scored, types.SearchResult{
			ID:       h.Key,
			Score:    semantic + bonus + sonaAdj,
			Metadata: meta,
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func containsTerm(terms []string, target string) bool {
	for _, t := range terms {
		if t == target {
			return true
		}
	}
	return false
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
