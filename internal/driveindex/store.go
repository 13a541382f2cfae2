// Package driveindex keeps a per-drive SQLite index of relative path to
// size and checksum, and builds it with a bounded pool of hashing workers.
package driveindex

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/archivist/internal/models"
)

// FileName is the index file kept at each drive root.
const FileName = ".archivist_drive_index.sqlite"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS drive_files (
	relative_path TEXT PRIMARY KEY,
	full_path     TEXT NOT NULL,
	file_size     INTEGER NOT NULL,
	checksum      TEXT NOT NULL,
	scanned_at    TIMESTAMP NOT NULL,
	drive_path    TEXT NOT NULL
);
`

// DB is one drive's index. All access goes through mu.
type DB struct {
	mu        sync.Mutex
	conn      *sql.DB
	drivePath string
}

// Open opens (or creates) the index database at path for the drive mounted
// at drivePath.
func Open(path, drivePath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("driveindex: open db: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("driveindex: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("driveindex: apply schema: %w", err)
	}
	return &DB{conn: conn, drivePath: drivePath}, nil
}

// OpenDrive opens the index stored at the root of drive.
func OpenDrive(drive string) (*DB, error) {
	return Open(Path(drive), drive)
}

// Path returns where the index of drive lives.
func Path(drive string) string {
	return filepath.Join(drive, FileName)
}

// Exists reports whether drive already has an index file.
func Exists(drive string) bool {
	_, err := os.Stat(Path(drive))
	return err == nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Upsert writes entries in one transaction, keyed by relative path.
func (db *DB) Upsert(entries []models.DriveFileEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("driveindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO drive_files (relative_path, full_path, file_size, checksum, scanned_at, drive_path)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(relative_path) DO UPDATE SET
			full_path  = excluded.full_path,
			file_size  = excluded.file_size,
			checksum   = excluded.checksum,
			scanned_at = excluded.scanned_at,
			drive_path = excluded.drive_path
	`)
	if err != nil {
		return fmt.Errorf("driveindex: prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if e.ScannedAt.IsZero() {
			e.ScannedAt = time.Now()
		}
		if e.DrivePath == "" {
			e.DrivePath = db.drivePath
		}
		if _, err := stmt.Exec(e.RelativePath, e.FullPath, e.FileSize, e.Checksum, e.ScannedAt.UTC(), e.DrivePath); err != nil {
			return fmt.Errorf("driveindex: upsert %s: %w", e.RelativePath, err)
		}
	}
	return tx.Commit()
}

// AddEntry records a single file, typically right after it was copied onto the drive.
func (db *DB) AddEntry(e models.DriveFileEntry) error {
	return db.Upsert([]models.DriveFileEntry{e})
}

// Load returns the whole index as relative path -> (size, checksum).
func (db *DB) Load() (map[string]models.FileSummary, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	rows, err := db.conn.Query(`SELECT relative_path, file_size, checksum FROM drive_files`)
	if err != nil {
		return nil, fmt.Errorf("driveindex: load: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.FileSummary)
	for rows.Next() {
		var rel string
		var s models.FileSummary
		if err := rows.Scan(&rel, &s.Size, &s.Checksum); err != nil {
			return nil, err
		}
		out[rel] = s
	}
	return out, rows.Err()
}

// Entry returns the row for rel.
func (db *DB) Entry(rel string) (*models.DriveFileEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var e models.DriveFileEntry
	err := db.conn.QueryRow(`
		SELECT relative_path, full_path, file_size, checksum, scanned_at, drive_path
		FROM drive_files WHERE relative_path = ?`, rel).
		Scan(&e.RelativePath, &e.FullPath, &e.FileSize, &e.Checksum, &e.ScannedAt, &e.DrivePath)
	if err != nil {
		return nil, fmt.Errorf("driveindex: entry %s: %w", rel, err)
	}
	return &e, nil
}

// Delete removes the given relative paths.
func (db *DB) Delete(rels []string) error {
	if len(rels) == 0 {
		return nil
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("driveindex: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, rel := range rels {
		if _, err := tx.Exec(`DELETE FROM drive_files WHERE relative_path = ?`, rel); err != nil {
			return fmt.Errorf("driveindex: delete %s: %w", rel, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of indexed files.
func (db *DB) Count() (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM drive_files`).Scan(&n); err != nil {
		return 0, fmt.Errorf("driveindex: count: %w", err)
	}
	return n, nil
}
