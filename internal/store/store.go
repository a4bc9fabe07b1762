package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/xharvest/internal/types"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// dsn applies the pragmas to every connection the pool opens
func dsn(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS checkpoints (
		slot TEXT PRIMARY KEY,
		records TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS stop_requests (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		requested_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		list_type TEXT NOT NULL,
		url TEXT,
		outcome TEXT NOT NULL,
		record_count INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_list_type ON runs(list_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Checkpoint returns the checkpoint stored under slot, usually a list type
func (s *Store) Checkpoint(slot string) *SQLiteCheckpoint {
	return &SQLiteCheckpoint{db: s.db, slot: slot}
}

// Signal returns the stop signal shared by every process using this database
func (s *Store) Signal() *SQLiteSignal {
	return &SQLiteSignal{db: s.db}
}

// SQLiteCheckpoint keeps one snapshot per slot
type SQLiteCheckpoint struct {
	db   *sql.DB
	slot string
}

func (c *SQLiteCheckpoint) Write(ctx context.Context, records []types.Record) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO checkpoints (slot, records, record_count, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			records = excluded.records,
			record_count = excluded.record_count,
			updated_at = excluded.updated_at
	`, c.slot, string(data), len(records), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %s: %w", c.slot, err)
	}
	return nil
}

func (c *SQLiteCheckpoint) Read(ctx context.Context) ([]types.Record, error) {
	var data string
	err := c.db.QueryRowContext(ctx, `SELECT records FROM checkpoints WHERE slot = ?`, c.slot).Scan(&data)
	if err == sql.ErrNoRows {
		return []types.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint %s: %w", c.slot, err)
	}
	return decodeRecords([]byte(data))
}

func (c *SQLiteCheckpoint) Clear(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE slot = ?`, c.slot)
	return err
}

// Info returns the record count and write time of the slot without decoding it.
// ok is false when nothing was written yet.
func (c *SQLiteCheckpoint) Info(ctx context.Context) (count int, updated time.Time, ok bool, err error) {
	err = c.db.QueryRowContext(ctx,
		`SELECT record_count, updated_at FROM checkpoints WHERE slot = ?`, c.slot,
	).Scan(&count, &updated)
	if err == sql.ErrNoRows {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, err
	}
	return count, updated, true, nil
}

// SQLiteSignal is a one-shot stop flag stored in a single row
type SQLiteSignal struct {
	db *sql.DB
}

func (s *SQLiteSignal) RequestStop(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stop_requests (id, requested_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET requested_at = excluded.requested_at
	`, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to request stop: %w", err)
	}
	return nil
}

func (s *SQLiteSignal) ConsumeStop(ctx context.Context) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM stop_requests WHERE id = 1`)
	if err != nil {
		return false, fmt.Errorf("failed to read stop signal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SaveRun inserts or replaces a run history entry
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, list_type, url, outcome, record_count, attempts, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			outcome = excluded.outcome,
			record_count = excluded.record_count,
			attempts = excluded.attempts,
			error = excluded.error,
			finished_at = excluded.finished_at
	`, r.ID, string(r.ListType), r.URL, r.Outcome, r.RecordCount, r.Attempts, r.Error,
		r.StartedAt.UTC(), r.FinishedAt.UTC())

	return err
}

// RecentRuns returns the latest runs, newest first. An empty listType matches every list.
func (s *Store) RecentRuns(ctx context.Context, listType types.ListType, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, list_type, url, outcome, record_count, attempts, error, started_at, finished_at
		FROM runs
		WHERE ? = '' OR list_type = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, string(listType), string(listType), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var r Run
		var lt string
		var url, errMsg sql.NullString

		err := rows.Scan(
			&r.ID, &lt, &url, &r.Outcome, &r.RecordCount, &r.Attempts, &errMsg,
			&r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		r.ListType = types.ListType(lt)
		r.URL = url.String
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func decodeRecords(data []byte) ([]types.Record, error) {
	records := []types.Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return records, nil
}
