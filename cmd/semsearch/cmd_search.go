package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semsearch/internal/ranker"
	"semsearch/internal/sona"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
)

var (
	searchDatabase string
	searchLimit    int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index for code matching a natural-language query",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		if searchDatabase != "" {
			cfg.VectorStore.Path = searchDatabase
		}

		embedder, err := newEmbedder()
		if err != nil {
			return fmt.Errorf("creating embedding engine: %w", err)
		}
		store, err := vectorstore.Open(dbPath(), embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}

		var sonaEng *sona.Engine
		if sonaEng, err = sona.Open(sonaPath(), embedder.Dimensions()); err != nil {
			sonaEng = sona.New(embedder.Dimensions())
		}

		r := ranker.New(store, embedder, sonaEng)
		limit := searchLimit
		if limit <= 0 {
			limit = cfg.Server.DefaultLimit
		}

		results, err := r.Search(context.Background(), query, limit)
		if err != nil {
			return fmt.Errorf("searching: %w", err)
		}

		return printResults(results)
	},
}

var embedCmd = &cobra.Command{
	Use:   "embed <text>",
	Short: "Print the embedding vector for a piece of text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		embedder, err := newEmbedder()
		if err != nil {
			return fmt.Errorf("creating embedding engine: %w", err)
		}
		vec, err := embedder.Embed(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("embedding text: %w", err)
		}

		if outFormat == "json" {
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(vec)
		}
		fmt.Printf("dims=%d\n", len(vec))
		for i, v := range vec {
			fmt.Printf("  [%d] %.6f\n", i, v)
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchDatabase, "database", "", "Vector store path (overrides config)")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 0, "Max results (default: server.default_limit from config)")
}

func printResults(results []types.SearchResult) error {
	if outFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	for i, r := range results {
		name := r.Metadata.ClassName
		if name == "" {
			name = r.Metadata.Path
		}
		fmt.Printf("%2d. %-60s score=%.4f  %s (%s)\n", i+1, r.Metadata.Path, r.Score, name, r.Metadata.MagentoType)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
	return nil
}
