// Package descriptions is an optional side-channel that stores LLM-written
// natural-language descriptions of di.xml files, keyed by path and content
// hash, so unchanged files are never re-described on a later run.
package descriptions

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"semsearch/internal/logging"
)

// FileDescription is one row of the descriptions table.
type FileDescription struct {
	Path        string `json:"path"`
	Hash        string `json:"hash"`
	Description string `json:"description"`
	Model       string `json:"model"`
	Timestamp   int64  `json:"timestamp"`
}

// DB is the descriptions SQLite store.
type DB struct {
	conn *sql.DB
}

const schema = `CREATE TABLE IF NOT EXISTS descriptions (
	path        TEXT PRIMARY KEY,
	hash        TEXT NOT NULL,
	description TEXT NOT NULL,
	model       TEXT NOT NULL,
	timestamp   INTEGER NOT NULL
);`

// Open opens (creating if necessary) the descriptions database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening descriptions db at %s: %w", path, err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating descriptions table: %w", err)
	}
	return &DB{conn: conn}, nil
}

// OpenReadOnly opens path read-only, for indexer lookups that must never
// write to the descriptions database themselves.
func OpenReadOnly(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening descriptions db read-only at %s: %w", path, err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Get returns the description for path, and whether one was found.
func (d *DB) Get(ctx context.Context, path string) (FileDescription, bool, error) {
	var fd FileDescription
	fd.Path = path
	err := d.conn.QueryRowContext(ctx,
		`SELECT hash, description, model, timestamp FROM descriptions WHERE path = ?`, path,
	).Scan(&fd.Hash, &fd.Description, &fd.Model, &fd.Timestamp)
	if err == sql.ErrNoRows {
		return FileDescription{}, false, nil
	}
	if err != nil {
		return FileDescription{}, false, fmt.Errorf("querying description for %s: %w", path, err)
	}
	return fd, true, nil
}

// Upsert inserts or replaces the description for path.
func (d *DB) Upsert(ctx context.Context, fd FileDescription) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO descriptions (path, hash, description, model, timestamp) VALUES (?, ?, ?, ?, ?)`,
		fd.Path, fd.Hash, fd.Description, fd.Model, fd.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("upserting description for %s: %w", fd.Path, err)
	}
	return nil
}

// All loads every stored description, keyed by path.
func (d *DB) All(ctx context.Context) (map[string]FileDescription, error) {
	rows, err := d.conn.QueryContext(ctx, `SELECT path, hash, description, model, timestamp FROM descriptions`)
	if err != nil {
		return nil, fmt.Errorf("listing descriptions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]FileDescription)
	for rows.Next() {
		var fd FileDescription
		if err := rows.Scan(&fd.Path, &fd.Hash, &fd.Description, &fd.Model, &fd.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning description row: %w", err)
		}
		out[fd.Path] = fd
	}
	return out, rows.Err()
}

// ComputeHash returns the content hash Upsert records use for change
// detection, so a later run with unchanged content can skip re-describing.
func ComputeHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", sum)
}

func logSkipped(path string) {
	logging.DescriptionsDebug("skipping %s: description is up to date", path)
}
