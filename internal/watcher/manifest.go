// Package watcher polls an indexed directory tree for added, modified and
// deleted files and incrementally updates the vector store without a full
// reindex, with fsnotify layered on top to wake the poll loop early instead
// of waiting out the full interval.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"semsearch/internal/parsing"
)

// FileRecord is the last-seen mtime and size for one indexed file, used to
// detect modification without re-reading or re-hashing file contents.
type FileRecord struct {
	ModTime time.Time
	Size    int64
}

// FileManifest tracks every file the watcher has seen, keyed by path
// relative to the indexing root.
type FileManifest struct {
	root  string
	files map[string]FileRecord
}

// ChangeSet is the result of one manifest scan: files new, modified or
// missing since the last scan.
type ChangeSet struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// IsEmpty reports whether the scan found nothing to do.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Deleted) == 0
}

// Total is the number of changed paths across all three categories.
func (c ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Deleted)
}

// NewManifest creates an empty manifest rooted at root.
func NewManifest(root string) *FileManifest {
	return &FileManifest{root: root, files: make(map[string]FileRecord)}
}

// BuildManifest walks root and records the current mtime/size of every file
// that would be indexed, without reading file contents. Used to seed a
// manifest for a store that was already populated by a prior full index.
func BuildManifest(root string) (*FileManifest, error) {
	m := NewManifest(root)
	err := walkIndexable(root, func(rel string, info fs.FileInfo) {
		m.files[rel] = FileRecord{ModTime: info.ModTime(), Size: info.Size()}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Len reports the number of files currently tracked.
func (m *FileManifest) Len() int {
	return len(m.files)
}

// DetectChanges re-walks root and diffs the current filesystem state
// against the manifest, returning what's new, modified or gone. It does not
// itself update the manifest; call ApplyIndexed/ApplyDeleted afterward.
func (m *FileManifest) DetectChanges() (ChangeSet, error) {
	var changes ChangeSet
	seen := make(map[string]struct{}, len(m.files))

	err := walkIndexable(m.root, func(rel string, info fs.FileInfo) {
		seen[rel] = struct{}{}

		record, known := m.files[rel]
		switch {
		case !known:
			changes.Added = append(changes.Added, rel)
		case info.ModTime() != record.ModTime || info.Size() != record.Size:
			changes.Modified = append(changes.Modified, rel)
		}
	})
	if err != nil {
		return ChangeSet{}, err
	}

	for rel := range m.files {
		if _, ok := seen[rel]; !ok {
			changes.Deleted = append(changes.Deleted, rel)
		}
	}

	return changes, nil
}

// ApplyIndexed records current mtime/size for every path that was just
// (re)indexed.
func (m *FileManifest) ApplyIndexed(paths []string) {
	for _, rel := range paths {
		info, err := os.Stat(filepath.Join(m.root, rel))
		if err != nil {
			continue
		}
		m.files[rel] = FileRecord{ModTime: info.ModTime(), Size: info.Size()}
	}
}

// ApplyDeleted removes deleted paths from the manifest.
func (m *FileManifest) ApplyDeleted(paths []string) {
	for _, rel := range paths {
		delete(m.files, rel)
	}
}

// maxWatchFileSize mirrors indexer.maxFileSize, which is unexported, so the
// value is repeated here.
const maxWatchFileSize = 100_000

func walkIndexable(root string, visit func(rel string, info fs.FileInfo)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && parsing.ShouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := extensionOf(path)
		if !parsing.IncludeExtensions[ext] {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxWatchFileSize {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		visit(filepath.ToSlash(rel), info)
		return nil
	})
}

func extensionOf(path string) string {
	ext := filepath.Ext(path)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	return ext
}
