// Package sqlite keeps versioned workspace snapshots in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/apiary/internal/storage"
	_ "modernc.org/sqlite"
)

// DefaultHistoryLimit is how many snapshots are kept when no limit is given.
const DefaultHistoryLimit = 20

var (
	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("snapshot store is closed")
	// ErrVersionNotFound is returned when a requested version does not exist.
	ErrVersionNotFound = errors.New("snapshot version not found")
)

// Version describes one stored snapshot.
type Version struct {
	ID           int64
	SavedAt      time.Time
	ProjectCount int
	Size         int
}

// Store implements storage.Persister using SQLite. Every save that changes
// the workspace appends a new version; only the newest limit versions are
// kept. The save time lives in its own column, not in the document.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	limit  int
	closed bool
}

// New opens (or creates) the database at dbPath.
func New(dbPath string, limit int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}

	store := &Store{db: db, limit: normalizeLimit(limit)}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize snapshot database: %w", err)
	}

	return store, nil
}

// NewInMemory creates a new in-memory SQLite store (useful for testing).
func NewInMemory(limit int) (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, limit: normalizeLimit(limit)}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// initialize creates the necessary tables and indexes.
func (s *Store) initialize() error {
	schema := `
		CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			saved_at INTEGER NOT NULL,
			project_count INTEGER NOT NULL,
			document TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_snapshots_saved_at ON snapshots(saved_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load returns the newest snapshot, or nil when none has been saved.
func (s *Store) Load(ctx context.Context) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var document string
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT document, saved_at FROM snapshots ORDER BY id DESC LIMIT 1",
	).Scan(&document, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	return decode(document, savedAt)
}

// LoadVersion returns the snapshot stored under id.
func (s *Store) LoadVersion(ctx context.Context, id int64) (*storage.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var document string
	var savedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT document, saved_at FROM snapshots WHERE id = ?", id,
	).Scan(&document, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %d: %w", id, err)
	}

	return decode(document, savedAt)
}

func decode(document string, savedAt int64) (*storage.Snapshot, error) {
	snap, err := storage.DecodeJSON([]byte(document))
	if err != nil {
		return nil, err
	}
	snap.SavedAt = time.UnixMilli(savedAt)
	return snap, nil
}

// Save appends the snapshot as a new version and prunes old ones. A snapshot
// equal to the newest version is not stored again.
func (s *Store) Save(ctx context.Context, snap *storage.Snapshot) error {
	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	content := *snap
	content.SavedAt = time.Time{}
	document, err := storage.EncodeJSON(&content)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var newest string
	err = tx.QueryRowContext(ctx,
		"SELECT document FROM snapshots ORDER BY id DESC LIMIT 1",
	).Scan(&newest)
	switch {
	case err == nil && newest == string(document):
		return nil
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to read newest snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO snapshots (saved_at, project_count, document) VALUES (?, ?, ?)",
		savedAt.UnixMilli(), len(snap.Projects), string(document),
	)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM snapshots WHERE id NOT IN (SELECT id FROM snapshots ORDER BY id DESC LIMIT ?)",
		s.limit,
	)
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

// History lists the stored versions, newest first.
func (s *Store) History(ctx context.Context) ([]Version, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, saved_at, project_count, LENGTH(document) FROM snapshots ORDER BY id DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	var versions []Version
	for rows.Next() {
		var v Version
		var savedAt int64
		if err := rows.Scan(&v.ID, &savedAt, &v.ProjectCount, &v.Size); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		v.SavedAt = time.UnixMilli(savedAt)
		versions = append(versions, v)
	}

	return versions, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
