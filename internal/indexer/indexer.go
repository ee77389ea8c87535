// Package indexer orchestrates file discovery, structural parsing and
// embedding into a two-phase pipeline: files are parsed for structure in
// parallel (parsing never touches the network or a model), then the
// resulting text is embedded and inserted into the vector store in batches.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"semsearch/internal/embedding"
	"semsearch/internal/logging"
	"semsearch/internal/parsing"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

// IndexStats summarizes one indexing run.
type IndexStats struct {
	FilesFound     int
	FilesIndexed   int
	FilesSkipped   int
	VectorsCreated int
	Errors         int
	PHPFiles       int
	JSFiles        int
	XMLFiles       int
	OtherFiles     int
}

// Indexer owns the vector store and embedder for one indexing root.
type Indexer struct {
	root      string
	store     *vectorstore.Store
	embedder  embedding.EmbeddingEngine
	excludes  []string
	workers   int
	batchSize int
}

// Option configures an Indexer at construction time.
type Option func(*Indexer)

// WithExcludes adds config-level path-substring excludes layered on top of
// parsing.ExcludeDirs' built-in basename set.
func WithExcludes(excludes []string) Option {
	return func(ix *Indexer) { ix.excludes = excludes }
}

// WithWorkers sets the parallel-parse worker count. Defaults to
// runtime.NumCPU-sized concurrency is deliberately not assumed here; callers
// pass a concrete count (e.g. from config or runtime.GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.workers = n
		}
	}
}

// WithBatchSize sets how many parsed files are embedded per EmbedBatch call.
func WithBatchSize(n int) Option {
	return func(ix *Indexer) {
		if n > 0 {
			ix.batchSize = n
		}
	}
}

// New creates an Indexer rooted at root, backed by store and embedder.
func New(root string, store *vectorstore.Store, embedder embedding.EmbeddingEngine, opts ...Option) *Indexer {
	ix := &Indexer{
		root:      root,
		store:     store,
		embedder:  embedder,
		workers:   4,
		batchSize: 32,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index performs a full reindex: discovers every indexable file under root,
// clears the store, parses everything in parallel, then embeds and inserts
// sequentially in batches. A full reindex discards whatever was indexed
// before it rather than reconciling against it — incremental updates after
// the initial index are the watcher's job (IndexFile/RemoveFile).
func (ix *Indexer) Index(ctx context.Context) (IndexStats, error) {
	start := time.Now()
	logging.Audit().IndexStart(ix.root)
	logging.IndexerDebug("discovering files under %s", ix.root)

	files, err := discover(ix.root, ix.excludes)
	if err != nil {
		return IndexStats{}, fmt.Errorf("discovering files: %w", err)
	}

	stats := IndexStats{FilesFound: len(files)}
	ix.store.Clear()

	parsed, parseStats := ix.parsePhase(ctx, files)
	stats.FilesIndexed = parseStats.FilesIndexed
	stats.FilesSkipped = parseStats.FilesSkipped
	stats.Errors = parseStats.Errors
	stats.PHPFiles = parseStats.PHPFiles
	stats.JSFiles = parseStats.JSFiles
	stats.XMLFiles = parseStats.XMLFiles
	stats.OtherFiles = parseStats.OtherFiles

	logging.IndexerDebug("parsed %d/%d files (%d skipped, %d errors), embedding %d items",
		stats.FilesIndexed, stats.FilesFound, stats.FilesSkipped, stats.Errors, len(parsed))

	if err := ix.embedAndInsert(ctx, parsed); err != nil {
		return stats, err
	}

	stats.VectorsCreated = ix.store.Len()
	logging.Audit().IndexComplete(ix.root, stats.FilesIndexed, time.Since(start).Milliseconds())
	return stats, nil
}

// parsePhase fans discovered files out across ix.workers goroutines, each
// owning its own parsing.Dispatcher (tree-sitter parsers aren't safe to
// share across goroutines), and returns every successfully parsed file
// along with per-category counts.
func (ix *Indexer) parsePhase(ctx context.Context, files []discoveredFile) ([]parsing.ParsedFile, IndexStats) {
	workers := ix.workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	buckets := make([][]parsing.ParsedFile, workers)
	var mu sync.Mutex
	var stats IndexStats

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			dispatcher := parsing.NewDispatcher()
			defer dispatcher.Close()

			var local []parsing.ParsedFile
			for i := w; i < len(files); i += workers {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				f := files[i]
				countByExt(&mu, &stats, f.ext)

				content, err := os.ReadFile(f.absPath)
				if err != nil {
					mu.Lock()
					stats.Errors++
					mu.Unlock()
					logging.IndexerWarn("reading %s: %v", f.relPath, err)
					logging.Audit().IndexFile(f.relPath, false, err.Error())
					continue
				}

				pf, ok := dispatcher.Parse(f.relPath, string(content))
				if !ok {
					mu.Lock()
					stats.FilesSkipped++
					mu.Unlock()
					continue
				}

				local = append(local, pf)
				mu.Lock()
				stats.FilesIndexed++
				mu.Unlock()
				logging.Audit().IndexFile(f.relPath, true, "")
			}
			buckets[w] = local
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logging.IndexerWarn("parse phase ended early: %v", err)
	}

	var all []parsing.ParsedFile
	for _, b := range buckets {
		all = append(all, b...)
	}
	return all, stats
}

func countByExt(mu *sync.Mutex, stats *IndexStats, ext string) {
	mu.Lock()
	defer mu.Unlock()
	switch ext {
	case "php", "phtml":
		stats.PHPFiles++
	case "js":
		stats.JSFiles++
	case "xml", "graphqls":
		stats.XMLFiles++
	default:
		stats.OtherFiles++
	}
}

// embedAndInsert embeds parsed files in batches and inserts them into the
// store. Embedding runs sequentially across batches: the model backends
// this targets (local model process, Ollama, GenAI) are themselves internally
// batched or rate-limited, so parallelizing here would only add contention.
func (ix *Indexer) embedAndInsert(ctx context.Context, parsed []parsing.ParsedFile) error {
	batchSize := ix.batchSize
	if batchSize < 1 {
		batchSize = 32
	}

	for start := 0; start < len(parsed); start += batchSize {
		end := start + batchSize
		if end > len(parsed) {
			end = len(parsed)
		}
		chunk := parsed[start:end]

		texts := make([]string, len(chunk))
		for i, pf := range chunk {
			texts[i] = pf.EmbedText
		}

		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding batch [%d:%d]: %w", start, end, err)
		}

		items := make([]vectorstore.Item, len(chunk))
		for i, pf := range chunk {
			items[i] = vectorstore.Item{Vector: vectors[i], Metadata: toMetadata(pf.Metadata)}
		}
		if _, err := ix.store.InsertBatch(items); err != nil {
			return fmt.Errorf("inserting batch [%d:%d]: %w", start, end, err)
		}
	}
	return nil
}

// IndexFile parses and embeds a single file, tombstoning any prior vector
// for the same path first. Used by the watcher for incremental reindexing
// of added or modified files; a no-op if the file is empty or over the
// size limit after parsing finds nothing indexable.
func (ix *Indexer) IndexFile(ctx context.Context, absPath string) error {
	rel := ix.relPath(absPath)

	content, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	if len(content) > maxFileSize {
		logging.IndexerDebug("skipping %s: over size limit", rel)
		return nil
	}

	dispatcher := parsing.NewDispatcher()
	defer dispatcher.Close()

	pf, ok := dispatcher.Parse(rel, string(content))
	if !ok {
		return nil
	}

	vec, err := ix.embedder.Embed(ctx, pf.EmbedText)
	if err != nil {
		return fmt.Errorf("embedding %s: %w", rel, err)
	}

	ix.store.RemoveByPath(rel)
	if _, err := ix.store.Insert(vec, toMetadata(pf.Metadata)); err != nil {
		return fmt.Errorf("inserting %s: %w", rel, err)
	}

	logging.Audit().IndexFile(rel, true, "")
	return nil
}

// RemoveFile tombstones every vector indexed for absPath.
func (ix *Indexer) RemoveFile(absPath string) []uint64 {
	rel := ix.relPath(absPath)
	ids := ix.store.RemoveByPath(rel)
	logging.IndexerDebug("removed %d vectors for %s", len(ids), rel)
	return ids
}

func (ix *Indexer) relPath(absPath string) string {
	rel, err := filepath.Rel(ix.root, absPath)
	if err != nil {
		rel = absPath
	}
	return filepath.ToSlash(rel)
}

// Save persists the vector store to path.
func (ix *Indexer) Save(path string) error {
	return ix.store.Save(path)
}

// Stats reports the current number of live vectors. Unlike Index's return
// value, this is a cheap snapshot that doesn't require a reindex.
func (ix *Indexer) Stats() IndexStats {
	return IndexStats{VectorsCreated: ix.store.Len()}
}

// Store returns the underlying vector store, for callers (the ranker, the
// watcher) that need direct access beyond indexing.
func (ix *Indexer) Store() *vectorstore.Store {
	return ix.store
}

func toMetadata(pm parsing.ParsedMetadata) types.Metadata {
	return types.Metadata{
		Path:           pm.Path,
		FileType:       pm.FileType,
		MagentoType:    pm.MagentoType,
		ClassName:      pm.ClassName,
		ClassType:      pm.ClassType,
		MethodName:     pm.MethodName,
		Methods:        pm.Methods,
		Namespace:      pm.Namespace,
		Module:         pm.Module,
		Area:           pm.Area,
		Extends:        pm.Extends,
		Implements:     pm.Implements,
		IsController:   pm.IsController,
		IsRepository:   pm.IsRepository,
		IsPlugin:       pm.IsPlugin,
		IsObserver:     pm.IsObserver,
		IsModel:        pm.IsModel,
		IsBlock:        pm.IsBlock,
		IsResolver:     pm.IsResolver,
		IsAPIInterface: pm.IsAPIInterface,
		IsUIComponent:  pm.IsUIComponent,
		IsWidget:       pm.IsWidget,
		IsMixin:        pm.IsMixin,
		JSDependencies: pm.JSDependencies,
		SearchText:     pm.SearchText,
	}
}
