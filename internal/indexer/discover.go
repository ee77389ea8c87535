package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"

	"semsearch/internal/parsing"
)

// maxFileSize is the per-file byte ceiling above which a file is skipped
// rather than indexed; large generated files add noise without adding
// search value.
const maxFileSize = 100_000

// discoveredFile is one file selected for parsing, with both its absolute
// path (for reading) and its path relative to the indexing root (for
// display and for the Target Framework convention heuristics, which key off
// module-relative paths like "app/code/Vendor/Module/...").
type discoveredFile struct {
	absPath string
	relPath string
	ext     string
}

// discover walks root, returning every file under the size limit whose
// extension is in parsing.IncludeExtensions and whose path doesn't fall
// under an excluded directory. extraExcludes are additional path-substring
// excludes from configuration, layered on top of the built-in basename
// exclusion set so operators can exclude compound paths (e.g. "dev/tests")
// that the built-in set intentionally only matches by bare directory name.
func discover(root string, extraExcludes []string) ([]discoveredFile, error) {
	var files []discoveredFile

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		relSlash := filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			if parsing.ShouldSkipDir(d.Name()) || matchesAny(relSlash, extraExcludes) {
				return filepath.SkipDir
			}
			return nil
		}

		if matchesAny(relSlash, extraExcludes) {
			return nil
		}

		ext := extensionOf(path)
		if !parsing.IncludeExtensions[ext] {
			return nil
		}

		info, infoErr := d.Info()
		if infoErr != nil || info.Size() > maxFileSize {
			return nil
		}

		files = append(files, discoveredFile{absPath: path, relPath: relSlash, ext: ext})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func matchesAny(relPath string, excludes []string) bool {
	for _, e := range excludes {
		e = strings.Trim(e, "/")
		if e == "" {
			continue
		}
		if strings.Contains(relPath, e) {
			return true
		}
	}
	return false
}

func extensionOf(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimPrefix(ext, ".")
}
