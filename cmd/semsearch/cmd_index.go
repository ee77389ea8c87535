package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"semsearch/internal/embedding"
	"semsearch/internal/indexer"
	"semsearch/internal/vectorstore"
)

var (
	indexWorkers  int
	indexDatabase string
)

var indexCmd = &cobra.Command{
	Use:   "index [root]",
	Short: "Index a codebase into the vector store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if indexDatabase != "" {
			cfg.VectorStore.Path = indexDatabase
		}

		embedder, err := newEmbedder()
		if err != nil {
			return fmt.Errorf("creating embedding engine: %w", err)
		}

		store, err := vectorstore.Open(dbPath(), embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}

		opts := []indexer.Option{indexer.WithExcludes(cfg.Indexer.Excludes)}
		if indexWorkers > 0 {
			opts = append(opts, indexer.WithWorkers(indexWorkers))
		}
		ix := indexer.New(root, store, embedder, opts...)

		ctx := context.Background()
		stats, err := ix.Index(ctx)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", root, err)
		}

		if err := ix.Save(dbPath()); err != nil {
			return fmt.Errorf("saving index: %w", err)
		}

		fmt.Printf("Indexed %s\n", root)
		fmt.Printf("  files found:   %d\n", stats.FilesFound)
		fmt.Printf("  files indexed: %d\n", stats.FilesIndexed)
		fmt.Printf("  php:           %d\n", stats.PHPFiles)
		fmt.Printf("  js:            %d\n", stats.JSFiles)
		fmt.Printf("  xml:           %d\n", stats.XMLFiles)
		fmt.Printf("  skipped:       %d\n", stats.FilesSkipped)
		fmt.Printf("  errors:        %d\n", stats.Errors)
		fmt.Printf("  vectors:       %d\n", store.Len())
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexDatabase, "database", "", "Vector store path (overrides config)")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "Parse worker count (default: indexer's own default)")
}

// newEmbedder builds the configured embedding engine, dispatching on
// cfg.Embedding.Provider.
func newEmbedder() (embedding.EmbeddingEngine, error) {
	return embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		LocalBinary:    cfg.Embedding.LocalBinary,
		LocalDims:      cfg.Embedding.Dims,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		GenAIOutputDim: cfg.Embedding.Dims,
		TaskType:       cfg.Embedding.TaskType,
	})
}
