// Package main implements the semsearch CLI: a semantic code search engine
// specialized for large PHP/JS/XML codebases following a Magento-style
// module convention.
//
// # File Index
//
//   - main.go       - entry point, rootCmd, global flags, shared helpers
//   - cmd_index.go  - indexCmd
//   - cmd_search.go - searchCmd, embedCmd
//   - cmd_stats.go  - statsCmd
//   - cmd_serve.go  - serveCmd, watchCmd
//   - cmd_validate.go - validateCmd
//   - cmd_download.go - downloadCmd
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"semsearch/internal/config"
	"semsearch/internal/logging"
)

var (
	verbose    bool
	workspace  string
	configPath string
	outFormat  string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "semsearch",
	Short: "Semantic code search over large PHP/JS/XML codebases",
	Long: `semsearch indexes a Target Framework-style codebase (Magento 2 and
similar conventions) into a vector store, then answers natural-language
queries with a hybrid semantic + keyword ranker that learns from feedback.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to initialize file logging: %v\n", err)
		}

		path := configPath
		if path == "" {
			path = filepath.Join(ws, ".semsearch", "config.yaml")
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: <workspace>/.semsearch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&outFormat, "format", "text", "Output format for read commands: text|json")

	rootCmd.AddCommand(
		indexCmd,
		searchCmd,
		embedCmd,
		statsCmd,
		watchCmd,
		serveCmd,
		validateCmd,
		downloadCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("command failed", zap.Error(err))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func dbPath() string {
	if cfg.VectorStore.Path != "" {
		return cfg.VectorStore.Path
	}
	return ".semsearch/index.db"
}

func sonaPath() string {
	if cfg.Sona.Path != "" {
		return cfg.Sona.Path
	}
	return dbPath() + ".sona"
}
