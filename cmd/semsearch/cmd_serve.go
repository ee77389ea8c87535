package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"semsearch/internal/indexer"
	"semsearch/internal/ranker"
	"semsearch/internal/server"
	"semsearch/internal/sona"
	"semsearch/internal/vectorstore"
	"semsearch/internal/watcher"
)

var (
	serveRoot string
	serveNoWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [root]",
	Short: "Run the line-delimited JSON query server on stdin/stdout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if serveRoot != "" {
			root = serveRoot
		}

		embedder, err := newEmbedder()
		if err != nil {
			return fmt.Errorf("creating embedding engine: %w", err)
		}
		store, err := vectorstore.Open(dbPath(), embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}

		ix := indexer.New(root, store, embedder, indexer.WithExcludes(cfg.Indexer.Excludes))

		sonaEng, err := sona.Open(sonaPath(), embedder.Dimensions())
		if err != nil {
			sonaEng = sona.New(embedder.Dimensions())
		}

		r := ranker.New(store, embedder, sonaEng)

		var indexLock sync.Mutex
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var w *watcher.Watcher
		if cfg.Watcher.Enabled && !serveNoWatch {
			w = watcher.New(ix, root, dbPath(), cfg.GetWatcherInterval(), cfg.Watcher.CompactThreshold, cfg.Watcher.UseFsnotify, &indexLock)
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("starting watcher: %w", err)
			}
			defer w.Stop()
		}

		srv := server.New(r, ix, w, sonaEng, sonaPath(), &indexLock, cfg.Server.DefaultLimit)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		return srv.Run(ctx, os.Stdin, os.Stdout)
	},
}

var (
	watchRoot     string
	watchInterval int
)

var watchCmd = &cobra.Command{
	Use:   "watch [root]",
	Short: "Watch a codebase and incrementally reindex on change",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		if watchRoot != "" {
			root = watchRoot
		}

		embedder, err := newEmbedder()
		if err != nil {
			return fmt.Errorf("creating embedding engine: %w", err)
		}
		store, err := vectorstore.Open(dbPath(), embedder.Dimensions())
		if err != nil {
			return fmt.Errorf("opening vector store: %w", err)
		}
		ix := indexer.New(root, store, embedder, indexer.WithExcludes(cfg.Indexer.Excludes))

		interval := cfg.GetWatcherInterval()
		if watchInterval > 0 {
			interval = time.Duration(watchInterval) * time.Second
		}

		var indexLock sync.Mutex
		w := watcher.New(ix, root, dbPath(), interval, cfg.Watcher.CompactThreshold, cfg.Watcher.UseFsnotify, &indexLock)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer w.Stop()

		fmt.Printf("watching %s (interval=%s)\n", root, interval)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("stopping watcher")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveRoot, "root", "", "Codebase root (default: positional arg or .)")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Disable the background file watcher")

	watchCmd.Flags().StringVar(&watchRoot, "root", "", "Codebase root (default: positional arg or .)")
	watchCmd.Flags().IntVar(&watchInterval, "interval", 0, "Poll interval in seconds (default: config's watcher.interval_seconds)")
}
