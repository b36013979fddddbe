// Package telemetry records a local, queryable log of query engine
// results: which package and question were asked, which document won the
// cosine ranking, at what score, and how long the round trip took. It
// exists purely for local diagnostics exposed through an MCP resource —
// nothing here reports off-machine.
package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one row of the query log: the outcome of a single C8 query.
type Record struct {
	Timestamp   time.Time
	Package     string
	Question    string
	WinningPath string
	Score       float64
	LatencyMS   int64
}

// Store persists and retrieves Records. Implementations must be safe for
// concurrent use.
type Store interface {
	Record(ctx context.Context, rec Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// SQLiteStore is a Store backed by a single SQLite file, via the CGO-free
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS query_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp    TEXT NOT NULL,
	package      TEXT NOT NULL,
	question     TEXT NOT NULL,
	winning_path TEXT NOT NULL,
	score        REAL NOT NULL,
	latency_ms   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_log_package ON query_log(package);
`

// Open creates or opens a SQLite query log at path, creating the schema if
// absent.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("telemetry: creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record inserts one query log row.
func (s *SQLiteStore) Record(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (timestamp, package, question, winning_path, score, latency_ms)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Package, rec.Question, rec.WinningPath, rec.Score, rec.LatencyMS)
	if err != nil {
		return fmt.Errorf("telemetry: inserting query log row: %w", err)
	}
	return nil
}

// Recent returns the most recent limit rows, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, package, question, winning_path, score, latency_ms
		FROM query_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("telemetry: querying recent rows: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts string
		if err := rows.Scan(&ts, &rec.Package, &rec.Question, &rec.WinningPath, &rec.Score, &rec.LatencyMS); err != nil {
			return nil, fmt.Errorf("telemetry: scanning row: %w", err)
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
