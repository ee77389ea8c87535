package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"semsearch/internal/indexer"
	"semsearch/internal/logging"
	"semsearch/internal/parsing"
)

// Status is a snapshot of the watcher's state, reported through the server
// protocol's watcher_status command.
type Status struct {
	Running         bool      `json:"running"`
	TrackedFiles    int       `json:"tracked_files"`
	LastScanChanges int       `json:"last_scan_changes"`
	LastScanAt      time.Time `json:"last_scan_at,omitempty"`
	IntervalSeconds int       `json:"interval_seconds"`
}

// Watcher polls root on a fixed interval, incrementally reindexing changed
// files and tombstoning deleted ones. An optional fsnotify watch on root
// wakes the poll loop early on filesystem activity instead of changing how
// changes are detected — the manifest scan remains the source of truth for
// what actually changed, since fsnotify events are coalesced per-directory
// and don't carry enough information to drive indexing directly.
type Watcher struct {
	ix        *indexer.Indexer
	root      string
	dbPath    string
	interval  time.Duration
	compact   float64
	fsEvents  bool
	indexLock *sync.Mutex

	mu       sync.RWMutex
	status   Status
	manifest *FileManifest

	wake   chan struct{}
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Watcher. interval is the poll period; compactThreshold is
// the tombstone ratio above which the store is compacted after a cycle;
// useFsnotify layers an early-wake fsnotify watch on top of polling.
// indexLock is the single exclusive-resource lock the server and the
// watcher contend for over the shared indexer; pass the same *sync.Mutex to
// both. A nil indexLock gives the watcher its own, for standalone use
// (tests, `semsearch watch` without a server attached).
func New(ix *indexer.Indexer, root, dbPath string, interval time.Duration, compactThreshold float64, useFsnotify bool, indexLock *sync.Mutex) *Watcher {
	if indexLock == nil {
		indexLock = &sync.Mutex{}
	}
	return &Watcher{
		ix:        ix,
		root:      root,
		dbPath:    dbPath,
		interval:  interval,
		compact:   compactThreshold,
		fsEvents:  useFsnotify,
		indexLock: indexLock,
		manifest:  NewManifest(root),
		wake:      make(chan struct{}, 1),
	}
}

// Start builds the initial manifest from the filesystem and begins the poll
// loop in a background goroutine. Non-blocking; call Stop (or cancel ctx) to
// end it.
func (w *Watcher) Start(ctx context.Context) error {
	manifest, err := BuildManifest(w.root)
	if err != nil {
		return err
	}
	w.manifest = manifest

	w.mu.Lock()
	w.status = Status{Running: true, TrackedFiles: manifest.Len(), IntervalSeconds: int(w.interval.Seconds())}
	w.mu.Unlock()

	logging.WatcherDebug("initial manifest: %d files tracked under %s", manifest.Len(), w.root)

	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	var fsw *fsnotify.Watcher
	if w.fsEvents {
		fsw, err = fsnotify.NewWatcher()
		if err != nil {
			logging.WatcherWarn("fsnotify unavailable, falling back to pure polling: %v", err)
			fsw = nil
		} else if err := addRecursive(fsw, w.root); err != nil {
			logging.WatcherWarn("fsnotify watch setup failed, falling back to pure polling: %v", err)
			fsw.Close()
			fsw = nil
		}
	}

	go w.run(ctx, fsw)
	return nil
}

// Stop signals the poll loop to exit and waits for it to finish.
func (w *Watcher) Stop() {
	w.mu.Lock()
	running := w.status.Running
	w.mu.Unlock()
	if !running || w.stopCh == nil {
		return
	}
	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.status.Running = false
	w.mu.Unlock()
}

// StatusSnapshot returns the watcher's current status.
func (w *Watcher) StatusSnapshot() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	defer close(w.doneCh)
	if fsw != nil {
		defer fsw.Close()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatcherDebug("watcher stopping: context cancelled")
			return
		case <-w.stopCh:
			logging.WatcherDebug("watcher stopping: stop requested")
			return
		case <-ticker.C:
			w.cycle(ctx)
		case <-w.wake:
			w.cycle(ctx)
		case event, ok := <-fsNotifyEvents(fsw):
			if !ok {
				continue
			}
			logging.WatcherDebug("fsnotify event: %s %s", event.Op, event.Name)
			select {
			case w.wake <- struct{}{}:
			default:
			}
		case err, ok := <-fsNotifyErrors(fsw):
			if ok {
				logging.WatcherWarn("fsnotify error: %v", err)
			}
		}
	}
}

// fsNotifyEvents/fsNotifyErrors return nil channels when fsw is nil, which
// is safe: a receive on a nil channel blocks forever and is simply never
// selected, leaving the loop driven by the ticker alone.
func fsNotifyEvents(fsw *fsnotify.Watcher) chan fsnotify.Event {
	if fsw == nil {
		return nil
	}
	return fsw.Events
}

func fsNotifyErrors(fsw *fsnotify.Watcher) chan error {
	if fsw == nil {
		return nil
	}
	return fsw.Errors
}

// cycle runs one detect-reindex-compact-save pass, mirroring the original
// watcher loop's six steps.
func (w *Watcher) cycle(ctx context.Context) {
	w.indexLock.Lock()
	defer w.indexLock.Unlock()

	changes, err := w.manifest.DetectChanges()
	if err != nil {
		logging.WatcherWarn("scan error: %v", err)
		return
	}
	if changes.IsEmpty() {
		return
	}

	start := time.Now()
	logging.WatcherDebug("detected %d changes: %d added, %d modified, %d deleted",
		changes.Total(), len(changes.Added), len(changes.Modified), len(changes.Deleted))

	for _, rel := range changes.Modified {
		w.ix.RemoveFile(filepath.Join(w.root, rel))
	}
	for _, rel := range changes.Deleted {
		w.ix.RemoveFile(filepath.Join(w.root, rel))
	}

	toIndex := make([]string, 0, len(changes.Added)+len(changes.Modified))
	toIndex = append(toIndex, changes.Added...)
	toIndex = append(toIndex, changes.Modified...)

	var indexed []string
	for _, rel := range toIndex {
		abs := filepath.Join(w.root, rel)
		if err := w.ix.IndexFile(ctx, abs); err != nil {
			logging.WatcherWarn("reindexing %s: %v", rel, err)
			continue
		}
		indexed = append(indexed, rel)
	}
	w.manifest.ApplyIndexed(indexed)
	w.manifest.ApplyDeleted(changes.Deleted)

	store := w.ix.Store()
	if store.TombstoneRatio() > w.compact {
		logging.WatcherDebug("compacting store, tombstone ratio above %.0f%%", w.compact*100)
		store.Compact()
	}

	if err := w.ix.Save(w.dbPath); err != nil {
		logging.WatcherWarn("saving index after watcher update: %v", err)
	}

	w.mu.Lock()
	w.status.TrackedFiles = w.manifest.Len()
	w.status.LastScanChanges = changes.Total()
	w.status.LastScanAt = time.Now()
	w.mu.Unlock()

	logging.Audit().WatcherCycle(changes.Total(), len(changes.Added), len(changes.Deleted), time.Since(start).Milliseconds())
}

// addRecursive adds root and every non-excluded subdirectory to fsw. fsnotify
// watches are not recursive on any platform, so every directory that could
// contain indexable files needs its own watch.
func addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && parsing.ShouldSkipDir(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
