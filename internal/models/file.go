// Package models defines the domain types shared by the organizer and the
// drive reconciler.
package models

import "time"

// FileRecord is the transient view of one candidate file.
type FileRecord struct {
	Path      string
	Size      int64
	Checksum  string
	Timestamp time.Time // zero when no timestamp could be extracted
}

// ProcessedEntry is the ledger row for a source path that was handled successfully.
type ProcessedEntry struct {
	OriginalPath     string    `json:"original_path"`
	OriginalChecksum string    `json:"original_checksum"`
	NewPath          string    `json:"new_path"`
	ProcessedAt      time.Time `json:"processed_at"`
	FileSize         int64     `json:"file_size"`
}

// DriveFileEntry is one row of a drive index.
type DriveFileEntry struct {
	RelativePath string    `json:"relative_path"`
	FullPath     string    `json:"full_path"`
	FileSize     int64     `json:"file_size"`
	Checksum     string    `json:"checksum"`
	ScannedAt    time.Time `json:"scanned_at"`
	DrivePath    string    `json:"drive_path"`
}

// FileSummary is the (size, checksum) pair a drive diff works on.
type FileSummary struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}
