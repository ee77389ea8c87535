// Package logging also provides an audit trail: structured JSON events for
// indexing runs, searches, and SONA feedback, independent of the per-category
// text logs above and meant to be durable enough to replay a session.
package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// AUDIT EVENT TYPES
// =============================================================================

// AuditEventType defines the kind of audit event.
type AuditEventType string

const (
	AuditIndexStart    AuditEventType = "index_start"
	AuditIndexFile     AuditEventType = "index_file"
	AuditIndexComplete AuditEventType = "index_complete"
	AuditIndexError    AuditEventType = "index_error"

	AuditSearchQuery    AuditEventType = "search_query"
	AuditSearchComplete AuditEventType = "search_complete"

	AuditSonaFeedback   AuditEventType = "sona_feedback"
	AuditSonaAdjustment AuditEventType = "sona_adjustment"

	AuditWatcherCycle  AuditEventType = "watcher_cycle"
	AuditWatcherChange AuditEventType = "watcher_change"

	AuditFileRead   AuditEventType = "file_read"
	AuditFileWrite  AuditEventType = "file_write"
	AuditFileDelete AuditEventType = "file_delete"
	AuditFileError  AuditEventType = "file_error"

	AuditErrorGeneric  AuditEventType = "error_generic"
	AuditErrorCritical AuditEventType = "error_critical"
)

// =============================================================================
// AUDIT EVENT STRUCTURE
// =============================================================================

// AuditEvent represents a structured audit log entry.
type AuditEvent struct {
	Timestamp  int64                  `json:"ts"`
	EventType  AuditEventType         `json:"event"`
	Category   string                 `json:"cat"`
	RequestID  string                 `json:"req"`
	Target     string                 `json:"target"`
	Action     string                 `json:"action"`
	Success    bool                   `json:"success"`
	DurationMs int64                  `json:"dur_ms"`
	Error      string                 `json:"error"`
	Message    string                 `json:"msg"`
	Fields     map[string]interface{} `json:"fields"`
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

var (
	auditFile   *os.File
	auditMu     sync.Mutex
	auditLogger *AuditLogger
)

// AuditLogger handles structured audit logging.
type AuditLogger struct {
	requestID string
	category  Category
}

// InitAudit initializes the audit logging system
func InitAudit() error {
	if !IsDebugMode() {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		return nil // Already initialized
	}

	date := time.Now().Format("2006-01-02")
	auditPath := filepath.Join(logsDir, fmt.Sprintf("%s_audit.log", date))

	file, err := os.OpenFile(auditPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	auditFile = file

	header := fmt.Sprintf("# Audit log started at %s\n", time.Now().Format(time.RFC3339))
	auditFile.WriteString(header)

	return nil
}

// CloseAudit closes the audit log file
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()

	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// Audit returns the global audit logger
func Audit() *AuditLogger {
	if auditLogger == nil {
		auditLogger = &AuditLogger{}
	}
	return auditLogger
}

// AuditWithRequest creates an audit logger scoped to a request/query ID
func AuditWithRequest(requestID string) *AuditLogger {
	return &AuditLogger{requestID: requestID}
}

// AuditWithContext creates a fully-scoped audit logger
func AuditWithContext(requestID string, category Category) *AuditLogger {
	return &AuditLogger{requestID: requestID, category: category}
}

// =============================================================================
// AUDIT LOGGING METHODS
// =============================================================================

// Log writes an audit event
func (a *AuditLogger) Log(event AuditEvent) {
	if !IsDebugMode() || auditFile == nil {
		return
	}

	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	if event.RequestID == "" && a.requestID != "" {
		event.RequestID = a.requestID
	}
	if event.Category == "" && a.category != "" {
		event.Category = string(a.category)
	}
	if event.Fields == nil {
		event.Fields = make(map[string]interface{})
	}

	auditMu.Lock()
	defer auditMu.Unlock()

	data, err := json.Marshal(event)
	if err == nil {
		auditFile.WriteString(string(data) + "\n")
	}
}

func escapeString(s string) string {
	// Optimization: strings.Builder instead of O(N^2) concatenation.
	var b strings.Builder
	b.Grow(len(s) + len(s)/10)

	for _, c := range s {
		switch c {
		case '"':
			b.WriteString("\\\"")
		case '\\':
			b.WriteString("\\\\")
		case '\n':
			b.WriteString("\\n")
		case '\r':
			b.WriteString("\\r")
		case '\t':
			b.WriteString("\\t")
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// =============================================================================
// CONVENIENCE METHODS FOR COMMON EVENTS
// =============================================================================

// IndexStart logs the beginning of an indexing run over a root path.
func (a *AuditLogger) IndexStart(root string) {
	a.Log(AuditEvent{
		EventType: AuditIndexStart,
		Target:    root,
		Success:   true,
		Message:   fmt.Sprintf("Index started: %s", root),
	})
}

// IndexFile logs a single file's indexing outcome.
func (a *AuditLogger) IndexFile(path string, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: AuditIndexFile,
		Target:    path,
		Success:   success,
		Error:     errMsg,
		Message:   fmt.Sprintf("Indexed %s (success=%v)", path, success),
	})
}

// IndexComplete logs the completion of an indexing run.
func (a *AuditLogger) IndexComplete(root string, fileCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditIndexComplete,
		Target:     root,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"file_count": fileCount},
		Message:    fmt.Sprintf("Index complete: %s (%d files, %dms)", root, fileCount, durationMs),
	})
}

// SearchQuery logs an incoming search query.
func (a *AuditLogger) SearchQuery(query string, limit int) {
	a.Log(AuditEvent{
		EventType: AuditSearchQuery,
		Target:    query,
		Success:   true,
		Fields:    map[string]interface{}{"limit": limit},
		Message:   fmt.Sprintf("Search query: %q (limit=%d)", query, limit),
	})
}

// SearchComplete logs a completed search with result count and latency.
func (a *AuditLogger) SearchComplete(query string, resultCount int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditSearchComplete,
		Target:     query,
		Success:    true,
		DurationMs: durationMs,
		Fields:     map[string]interface{}{"result_count": resultCount},
		Message:    fmt.Sprintf("Search complete: %q -> %d results (%dms)", query, resultCount, durationMs),
	})
}

// SonaFeedback logs a feedback signal received for a query/result pair.
func (a *AuditLogger) SonaFeedback(query, path string, positive bool) {
	a.Log(AuditEvent{
		EventType: AuditSonaFeedback,
		Target:    path,
		Action:    query,
		Success:   positive,
		Message:   fmt.Sprintf("SONA feedback: query=%q path=%s positive=%v", query, path, positive),
	})
}

// WatcherCycle logs one poll cycle of the file watcher.
func (a *AuditLogger) WatcherCycle(changed, added, deleted int, durationMs int64) {
	a.Log(AuditEvent{
		EventType:  AuditWatcherCycle,
		Success:    true,
		DurationMs: durationMs,
		Fields: map[string]interface{}{
			"changed": changed,
			"added":   added,
			"deleted": deleted,
		},
		Message: fmt.Sprintf("Watcher cycle: %d changed, %d added, %d deleted (%dms)", changed, added, deleted, durationMs),
	})
}

// FileOp logs a file operation.
func (a *AuditLogger) FileOp(op AuditEventType, path string, size int64, success bool, errMsg string) {
	a.Log(AuditEvent{
		EventType: op,
		Target:    path,
		Success:   success,
		Error:     errMsg,
		Fields:    map[string]interface{}{"size": size},
		Message:   fmt.Sprintf("File %s: %s (%d bytes, success=%v)", op, path, size, success),
	})
}

// Error logs an error event.
func (a *AuditLogger) Error(category string, err error, critical bool) {
	eventType := AuditErrorGeneric
	if critical {
		eventType = AuditErrorCritical
	}
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	a.Log(AuditEvent{
		EventType: eventType,
		Category:  category,
		Success:   false,
		Error:     errMsg,
		Message:   fmt.Sprintf("Error in %s: %s (critical=%v)", category, errMsg, critical),
	})
}
