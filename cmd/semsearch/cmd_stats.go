package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"semsearch/internal/sona"
	"semsearch/internal/vectorstore"
)

var statsDatabase string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print vector store and SONA learning statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := dbPath()
		if statsDatabase != "" {
			path = statsDatabase
		}
		if !vectorstore.CheckFormat(path) {
			return fmt.Errorf("vector store at %s is unreadable or in an incompatible format", path)
		}

		store, err := vectorstore.Open(path, cfg.Embedding.Dims)
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}

		learned, observations, terms, global := 0, 0, 0, 0
		if sonaEng, err := sona.Open(path+".sona", cfg.Embedding.Dims); err == nil {
			learned, observations, terms, global = sonaEng.StatusCounts()
		}

		if outFormat == "json" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]interface{}{
				"vectors":            store.Len(),
				"learned_patterns":   learned,
				"total_observations": observations,
				"term_patterns":      terms,
				"global_observations": global,
			})
		}

		fmt.Printf("vectors:             %d\n", store.Len())
		fmt.Printf("learned patterns:    %d\n", learned)
		fmt.Printf("total observations:  %d\n", observations)
		fmt.Printf("term patterns:       %d\n", terms)
		fmt.Printf("global observations: %d\n", global)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsDatabase, "database", "", "Vector store path (overrides config)")
}
