package api

import (
	"github.com/starford/archivist/internal/archiveservice"
	"github.com/starford/archivist/internal/models"
)

// LedgerEntry is a processed-file record (aliased from the domain layer).
type LedgerEntry = models.ProcessedEntry

// LedgerListResponse wraps the most recent ledger entries.
type LedgerListResponse struct {
	Entries []LedgerEntry `json:"entries" validate:"required"`
}

// StatusResponse is the archive status (aliased from the domain layer).
type StatusResponse = archiveservice.Status

// RunStats are the counters of one organize run.
type RunStats = models.Stats

// OutcomeResponse is a per-file result.
type OutcomeResponse struct {
	Success    bool   `json:"success" example:"true"`
	Action     string `json:"action" example:"dry_run"`
	Reason     string `json:"reason,omitempty" example:"duplicate"`
	SourcePath string `json:"source_path" example:"/inbox/IMG_0001.jpg"`
	TargetPath string `json:"target_path,omitempty" example:"/archive/2023/2023_12/2023-12-25_14-30-22.jpg"`
	Checksum   string `json:"checksum,omitempty" example:"9f86d08..."`
}

func outcomeResponse(o models.Outcome) OutcomeResponse {
	return OutcomeResponse{
		Success:    o.Success,
		Action:     o.Action,
		Reason:     o.Reason,
		SourcePath: o.SourcePath,
		TargetPath: o.TargetPath,
		Checksum:   o.Checksum,
	}
}

// CompareResponse is the drive comparison report (aliased from the domain layer).
type CompareResponse = archiveservice.CompareReport
