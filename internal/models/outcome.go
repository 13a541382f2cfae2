package models

// Reason codes for per-file outcomes.
const (
	ReasonUnsupportedExtension = "unsupported_extension"
	ReasonAlreadyProcessed     = "already_processed"
	ReasonAlreadyInArchive     = "already_in_archive"
	ReasonNoTimestamp          = "no_timestamp_available"
	ReasonDuplicate            = "duplicate"
	ReasonNameConflict         = "name_conflict"
)

// Actions performed on a successfully handled file.
const (
	ActionMoved   = "moved"
	ActionCopied  = "copied"
	ActionRenamed = "renamed"
	ActionDryRun  = "dry_run"
	ActionSkipped = "skipped"
)

// Outcome is the terminal result of processing one file. Exactly one of
// Success or a non-empty Reason describes it; Err is set only for errors.
type Outcome struct {
	Success    bool   `json:"success"`
	Action     string `json:"action"`
	Reason     string `json:"reason,omitempty"`
	SourcePath string `json:"source_path"`
	TargetPath string `json:"target_path,omitempty"`
	Checksum   string `json:"checksum,omitempty"`
	Err        error  `json:"-"`
}

// Skipped reports whether the outcome is an input skip (not an error, not a duplicate).
func (o Outcome) Skipped() bool {
	switch o.Reason {
	case ReasonUnsupportedExtension, ReasonAlreadyInArchive, ReasonNoTimestamp:
		return true
	}
	return false
}

// Duplicate reports whether the outcome counts as a duplicate.
func (o Outcome) Duplicate() bool {
	return o.Reason == ReasonDuplicate || o.Reason == ReasonAlreadyProcessed
}

// Stats aggregates outcomes over a directory run.
type Stats struct {
	Processed  int  `json:"processed"`
	Skipped    int  `json:"skipped"`
	Duplicates int  `json:"duplicates"`
	Errors     int  `json:"errors"`
	Cancelled  bool `json:"cancelled,omitempty"`
}

// Add folds one outcome into s.
func (s *Stats) Add(o Outcome) {
	switch {
	case o.Success:
		s.Processed++
	case o.Duplicate():
		s.Duplicates++
	case o.Skipped():
		s.Skipped++
	default:
		s.Errors++
	}
}
