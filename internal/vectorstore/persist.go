package vectorstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coder/hnsw"

	"semsearch/internal/logging"
	"semsearch/internal/types"
)

// persistVersionV2 is written as the leading byte of every file saved by
// this version of the store. Its absence (pre-tombstone files written by
// the original implementation) selects the V1 fallback decoder.
const persistVersionV2 byte = 2

type persistedRecordV1 struct {
	ID       uint64         `json:"id"`
	Vector   []float32      `json:"vector"`
	Metadata types.Metadata `json:"metadata"`
}

type persistedStateV1 struct {
	Dims    int                 `json:"dims"`
	NextID  uint64              `json:"next_id"`
	Records []persistedRecordV1 `json:"records"`
}

type persistedStateV2 struct {
	persistedStateV1
	Tombstones []uint64 `json:"tombstones"`
}

// Save writes the store to path as a V2 payload: a version byte followed by
// JSON. The parent directory is created if missing. Sibling legacy files
// from older binary formats are cleaned up once the new file lands.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	state := persistedStateV2{
		persistedStateV1: persistedStateV1{
			Dims:   s.dims,
			NextID: s.nextID,
		},
	}
	state.Records = make([]persistedRecordV1, 0, len(s.vectors))
	for id, vec := range s.vectors {
		state.Records = append(state.Records, persistedRecordV1{
			ID:       id,
			Vector:   vec,
			Metadata: s.metadata[id],
		})
	}
	state.Tombstones = make([]uint64, 0, len(s.tombstones))
	for id := range s.tombstones {
		state.Tombstones = append(state.Tombstones, id)
	}
	s.mu.RUnlock()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating vector store directory: %w", err)
		}
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("serializing vector store: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteByte(persistVersionV2)
	buf.Write(payload)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing vector store: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalizing vector store write: %w", err)
	}

	for _, ext := range []string{".bin", ".json"} {
		legacy := trimExt(path) + ext
		if legacy != path {
			_ = os.Remove(legacy)
		}
	}

	return nil
}

func trimExt(path string) string {
	ext := filepath.Ext(path)
	return path[:len(path)-len(ext)]
}

// Open loads a store from path, or returns an empty store of the given
// dimensionality if the file doesn't exist. A legacy sibling "<stem>.bin"
// file is migrated in place on first open. A format mismatch is not fatal:
// it's logged, the stale file is removed, and an empty store is returned.
func Open(path string, dims int) (*Store, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if legacy := trimExt(path) + ".bin"; legacy != path {
			if _, lerr := os.Stat(legacy); lerr == nil {
				logging.VectorStoreDebug("migrating legacy vector store %s -> %s", legacy, path)
				if rerr := os.Rename(legacy, path); rerr == nil {
					return loadOrReset(path, dims)
				}
			}
		}
		return New(dims), nil
	} else if err != nil {
		return nil, fmt.Errorf("checking vector store path: %w", err)
	}

	return loadOrReset(path, dims)
}

func loadOrReset(path string, dims int) (*Store, error) {
	s, err := load(path, dims)
	if err == nil {
		return s, nil
	}

	var formatErr *ErrFormatChanged
	if errors.As(err, &formatErr) {
		logging.VectorStoreWarn("vector store format incompatible at %s: %v; removing and starting empty", path, err)
		_ = os.Remove(path)
		return New(dims), nil
	}
	return nil, err
}

func load(path string, dims int) (*Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading vector store: %w", err)
	}
	if len(raw) == 0 {
		return New(dims), nil
	}

	if raw[0] == persistVersionV2 {
		var state persistedStateV2
		if err := json.Unmarshal(raw[1:], &state); err != nil {
			return nil, &ErrFormatChanged{Path: path, Err: err}
		}
		return fromStateV2(state), nil
	}

	var state persistedStateV1
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, &ErrFormatChanged{Path: path, Err: err}
	}
	return fromStateV1(state), nil
}

func fromStateV1(state persistedStateV1) *Store {
	s := &Store{
		dims:       state.Dims,
		graph:      newGraph(),
		vectors:    make(map[uint64][]float32, len(state.Records)),
		metadata:   make(map[uint64]types.Metadata, len(state.Records)),
		tombstones: make(map[uint64]struct{}),
		nextID:     state.NextID,
	}
	nodes := make([]hnsw.Node[uint64], 0, len(state.Records))
	for _, rec := range state.Records {
		s.vectors[rec.ID] = rec.Vector
		s.metadata[rec.ID] = rec.Metadata
		nodes = append(nodes, hnsw.MakeNode(rec.ID, rec.Vector))
	}
	if len(nodes) > 0 {
		s.graph.Add(nodes...)
	}
	return s
}

func fromStateV2(state persistedStateV2) *Store {
	tombstones := make(map[uint64]struct{}, len(state.Tombstones))
	for _, id := range state.Tombstones {
		tombstones[id] = struct{}{}
	}

	s := &Store{
		dims:       state.Dims,
		graph:      newGraph(),
		vectors:    make(map[uint64][]float32, len(state.Records)),
		metadata:   make(map[uint64]types.Metadata, len(state.Records)),
		tombstones: tombstones,
		nextID:     state.NextID,
	}
	nodes := make([]hnsw.Node[uint64], 0, len(state.Records))
	for _, rec := range state.Records {
		s.vectors[rec.ID] = rec.Vector
		s.metadata[rec.ID] = rec.Metadata
		if _, dead := tombstones[rec.ID]; dead {
			continue
		}
		nodes = append(nodes, hnsw.MakeNode(rec.ID, rec.Vector))
	}
	if len(nodes) > 0 {
		s.graph.Add(nodes...)
	}
	return s
}

// CheckFormat reports whether the file at path can be loaded by this
// version of the store, without mutating anything. A missing file counts as
// loadable. Used by the CLI's `stats` command to refuse an unreadable file.
func CheckFormat(path string) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist)
	}
	if len(raw) == 0 {
		return true
	}
	if raw[0] == persistVersionV2 {
		var state persistedStateV2
		return json.Unmarshal(raw[1:], &state) == nil
	}
	var state persistedStateV1
	return json.Unmarshal(raw, &state) == nil
}
