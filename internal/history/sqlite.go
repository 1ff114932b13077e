package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/texbuilder/internal/report"
)

// ErrNotFound is returned when a build ID is not in the store.
var ErrNotFound = errors.New("build not found")

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens or creates the database at dbPath.
// Use ":memory:" for an in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Each connection to ":memory:" is a distinct database.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		documents INTEGER NOT NULL,
		errors INTEGER NOT NULL,
		warnings INTEGER NOT NULL,
		summary TEXT NOT NULL,
		report BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL REFERENCES builds(id),
		document TEXT NOT NULL,
		converged INTEGER NOT NULL,
		compiler_runs INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started ON builds(started);
	CREATE INDEX IF NOT EXISTS idx_documents_build ON documents(build_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores r and its documents in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, r *report.BuildReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	errs, warns := r.Counts()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO builds (id, started, finished, outcome, documents, errors, warnings, summary, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.BuildID, r.Start.UnixMilli(), r.End.UnixMilli(), string(r.Outcome),
		len(r.Documents), errs, warns, r.Summary(), payload,
	)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}
	for _, d := range r.Documents {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (build_id, document, converged, compiler_runs, duration_ms, failed, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.BuildID, d.Document, d.Converged, d.CompilerRuns, d.Duration.Milliseconds(), d.Failed(), d.Error,
		)
		if err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Recent returns up to limit builds, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started, finished, outcome, documents, errors, warnings, summary
		 FROM builds ORDER BY started DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query builds: %w", err)
	}
	defer rows.Close()

	var builds []Build
	for rows.Next() {
		var (
			b                 Build
			started, finished int64
			outcome           string
		)
		if err := rows.Scan(&b.ID, &started, &finished, &outcome, &b.Documents, &b.Errors, &b.Warnings, &b.Summary); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		b.Start = time.UnixMilli(started)
		b.End = time.UnixMilli(finished)
		b.Outcome = report.BuildOutcome(outcome)
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return builds, nil
}

// Documents returns the document results of buildID in recorded order.
func (s *SQLiteStore) Documents(ctx context.Context, buildID string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT build_id, document, converged, compiler_runs, duration_ms, failed, COALESCE(error, '')
		 FROM documents WHERE build_id = ? ORDER BY id`, buildID)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d  Document
			ms int64
		)
		if err := rows.Scan(&d.BuildID, &d.Document, &d.Converged, &d.CompilerRuns, &ms, &d.Failed, &d.Error); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Duration = time.Duration(ms) * time.Millisecond
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return docs, nil
}

// Report returns the stored report for buildID or ErrNotFound.
func (s *SQLiteStore) Report(ctx context.Context, buildID string) (*report.BuildReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT report FROM builds WHERE id = ?`, buildID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, buildID)
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}
	var r report.BuildReport
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}
