// Package ledger persists the processed-file ledger that makes organizer
// runs idempotent.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/models"
)

// FileName is the ledger file kept inside each archive root.
const FileName = ".archivist_ledger.sqlite"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS processed_files (
	original_path     TEXT PRIMARY KEY,
	original_checksum TEXT NOT NULL,
	new_path          TEXT NOT NULL,
	processed_at      TIMESTAMP NOT NULL,
	file_size         INTEGER NOT NULL
);
`

// DB is the SQLite-backed ledger. All access goes through mu.
type DB struct {
	mu   sync.Mutex
	conn *sql.DB
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ledger: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// OpenArchive opens the ledger of an archive root, creating the root if needed.
func OpenArchive(root string) (*DB, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create archive root: %w", err)
	}
	return Open(filepath.Join(root, FileName))
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Lookup returns the entry recorded for path, or apperr.ErrNotFound.
func (db *DB) Lookup(path string) (*models.ProcessedEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var e models.ProcessedEntry
	err := db.conn.QueryRow(`
		SELECT original_path, original_checksum, new_path, processed_at, file_size
		FROM processed_files WHERE original_path = ?`, path).
		Scan(&e.OriginalPath, &e.OriginalChecksum, &e.NewPath, &e.ProcessedAt, &e.FileSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: lookup: %w", err)
	}
	return &e, nil
}

// Record stores e, replacing any previous entry for the same source path.
func (db *DB) Record(e models.ProcessedEntry) error {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		INSERT INTO processed_files (original_path, original_checksum, new_path, processed_at, file_size)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(original_path) DO UPDATE SET
			original_checksum = excluded.original_checksum,
			new_path          = excluded.new_path,
			processed_at      = excluded.processed_at,
			file_size         = excluded.file_size
	`, e.OriginalPath, e.OriginalChecksum, e.NewPath, e.ProcessedAt.UTC(), e.FileSize)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

// IsProcessed reports whether path was recorded with the digest sum. A
// recorded entry with a different digest means the content drifted and the
// file must be processed again; the stale entry is still returned.
func (db *DB) IsProcessed(path, sum string) (bool, *models.ProcessedEntry, error) {
	e, err := db.Lookup(path)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	return e.OriginalChecksum == sum, e, nil
}

// Count returns the number of recorded entries.
func (db *DB) Count() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM processed_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ledger: count: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (db *DB) Recent(limit int) ([]models.ProcessedEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`
		SELECT original_path, original_checksum, new_path, processed_at, file_size
		FROM processed_files ORDER BY processed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}
	defer rows.Close()

	var out []models.ProcessedEntry
	for rows.Next() {
		var e models.ProcessedEntry
		if err := rows.Scan(&e.OriginalPath, &e.OriginalChecksum, &e.NewPath, &e.ProcessedAt, &e.FileSize); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
