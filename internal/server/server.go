// Package server implements the line-delimited JSON protocol that
// editor/CLI clients speak to a running semsearch instance: one JSON object
// per line in, one JSON object per line out. There is no precedent for this
// protocol in the ported codebase or its original implementation — the
// wire shapes here follow the specification's own protocol table directly.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"semsearch/internal/logging"
	"semsearch/internal/ranker"
	"semsearch/internal/sona"
	"semsearch/internal/types"
	"semsearch/internal/vectorstore"
	"semsearch/internal/watcher"
)

// request is the single envelope every protocol command is decoded into.
// Fields irrelevant to a given command are simply left zero.
type request struct {
	Command string        `json:"command"`
	Query   string        `json:"query"`
	Limit   int           `json:"limit"`
	Signals []sona.Signal `json:"signals"`
}

type okEnvelope struct {
	Ok   bool        `json:"ok"`
	Data interface{} `json:"data"`
}

type errEnvelope struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

type readinessEnvelope struct {
	Ok      bool `json:"ok"`
	Ready   bool `json:"ready"`
	Vectors int  `json:"vectors"`
	Watcher bool `json:"watcher"`
}

type statsData struct {
	Vectors int `json:"vectors"`
}

type feedbackData struct {
	Learned int `json:"learned"`
}

type sonaStatusData struct {
	LearnedPatterns    int `json:"learned_patterns"`
	TotalObservations  int `json:"total_observations"`
	TermPatterns       int `json:"term_patterns"`
	GlobalObservations int `json:"global_observations"`
}

// FileIndexer is the subset of internal/indexer.Indexer the server needs for
// the stats command and for sharing the exclusive indexing resource.
type FileIndexer interface {
	Store() *vectorstore.Store
	Save(path string) error
}

// Server answers the line-delimited JSON protocol against one ranker,
// indexer, optional watcher and optional SONA engine. The indexer is a
// single exclusive resource: the server and the watcher's poll loop
// contend for indexLock, held for the entire duration of a query or an
// incremental update, so a feedback-driven state write never races a
// watcher-driven reindex.
type Server struct {
	ranker    *ranker.Ranker
	ix        FileIndexer
	watch     *watcher.Watcher
	sonaEng   *sona.Engine
	sonaPath  string
	indexLock *sync.Mutex

	defaultLimit int
}

// New builds a Server. watch, sonaEng and sonaPath may be zero values: a nil
// watch makes watcher_status report unavailable, and a nil sonaEng makes
// feedback/sona_status report unavailable rather than panicking.
func New(r *ranker.Ranker, ix FileIndexer, watch *watcher.Watcher, sonaEng *sona.Engine, sonaPath string, indexLock *sync.Mutex, defaultLimit int) *Server {
	if indexLock == nil {
		indexLock = &sync.Mutex{}
	}
	if defaultLimit < 1 {
		defaultLimit = 10
	}
	return &Server{
		ranker:       r,
		ix:           ix,
		watch:        watch,
		sonaEng:      sonaEng,
		sonaPath:     sonaPath,
		indexLock:    indexLock,
		defaultLimit: defaultLimit,
	}
}

// Run reads one JSON request per line from in and writes one JSON response
// per line to out until in is exhausted or ctx is cancelled. It writes a
// readiness line before reading the first request and never returns a
// protocol-level error to the caller: malformed input and handler panics
// both become {ok:false} response lines, keeping the loop alive.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	w := bufio.NewWriter(out)
	defer w.Flush()

	ready := readinessEnvelope{Ok: true, Ready: true, Vectors: s.ix.Store().Len(), Watcher: s.watch != nil}
	if err := writeLine(w, ready); err != nil {
		return err
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		resp := s.handleLine(ctx, line)
		if err := writeLine(w, resp); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// handleLine decodes and dispatches a single request line, recovering from
// any panic in the handler so one malformed or unlucky request never brings
// the whole server down.
func (s *Server) handleLine(ctx context.Context, line []byte) (resp interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logging.ServerError("recovered panic handling request: %v", r)
			resp = errEnvelope{Ok: false, Error: fmt.Sprintf("internal error: %v", r)}
		}
	}()

	var req request
	if err := json.Unmarshal(line, &req); err != nil {
		return errEnvelope{Ok: false, Error: fmt.Sprintf("malformed request: %v", err)}
	}

	reqID := uuid.NewString()
	data, err := s.dispatch(ctx, reqID, req)
	if err != nil {
		return errEnvelope{Ok: false, Error: err.Error()}
	}
	return okEnvelope{Ok: true, Data: data}
}

func (s *Server) dispatch(ctx context.Context, reqID string, req request) (interface{}, error) {
	s.indexLock.Lock()
	defer s.indexLock.Unlock()

	switch req.Command {
	case "search":
		return s.handleSearch(ctx, reqID, req)
	case "stats":
		return statsData{Vectors: s.ix.Store().Len()}, nil
	case "watcher_status":
		return s.handleWatcherStatus()
	case "feedback":
		return s.handleFeedback(reqID, req)
	case "sona_status":
		return s.handleSonaStatus()
	default:
		return nil, fmt.Errorf("unknown command: %q", req.Command)
	}
}

func (s *Server) handleSearch(ctx context.Context, reqID string, req request) ([]types.SearchResult, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = s.defaultLimit
	}

	audit := logging.AuditWithRequest(reqID)
	audit.SearchQuery(req.Query, limit)

	results, err := s.ranker.Search(ctx, req.Query, limit)
	if err != nil {
		audit.Error("server", err, false)
		return nil, err
	}

	audit.SearchComplete(req.Query, len(results), 0)
	return results, nil
}

func (s *Server) handleWatcherStatus() (watcher.Status, error) {
	if s.watch == nil {
		return watcher.Status{}, fmt.Errorf("watcher not running")
	}
	return s.watch.StatusSnapshot(), nil
}

func (s *Server) handleFeedback(reqID string, req request) (feedbackData, error) {
	if s.sonaEng == nil {
		return feedbackData{}, fmt.Errorf("sona engine not configured")
	}

	audit := logging.AuditWithRequest(reqID)
	for _, sig := range req.Signals {
		s.sonaEng.Learn(sig)
		query := sig.Query
		if query == "" {
			query = sig.OriginalQuery
		}
		for _, path := range sig.SearchResultPaths {
			audit.SonaFeedback(query, path, sig.Type != "")
		}
	}

	if s.sonaPath != "" {
		if err := s.sonaEng.Save(s.sonaPath); err != nil {
			logging.ServerError("persisting sona state after feedback: %v", err)
		}
	}

	return feedbackData{Learned: len(req.Signals)}, nil
}

func (s *Server) handleSonaStatus() (sonaStatusData, error) {
	if s.sonaEng == nil {
		return sonaStatusData{}, fmt.Errorf("sona engine not configured")
	}
	learned, observations, terms, global := s.sonaEng.StatusCounts()
	return sonaStatusData{
		LearnedPatterns:    learned,
		TotalObservations:  observations,
		TermPatterns:       terms,
		GlobalObservations: global,
	}, nil
}

func writeLine(w *bufio.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}
