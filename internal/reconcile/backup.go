package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/storage"
)

// driveArchiveDirs are tried in order when looking for an existing archive on a drive.
var driveArchiveDirs = []string{"archive", "Archive", "photos", "Photos"}

// DriveBackup is the plan and outcome for one drive.
type DriveBackup struct {
	Drive       string   `json:"drive"`
	Target      string   `json:"target"`
	ToCopy      []string `json:"-"`
	Conflicts   []string `json:"conflicts,omitempty"`
	Skipped     int      `json:"skipped"`
	Copied      int      `json:"copied"`
	Errors      int      `json:"errors"`
	BytesCopied int64    `json:"bytes_copied"`
	bytesNeeded uint64
}

// BackupResult is the result of BackupToDrives.
type BackupResult struct {
	OK        bool          `json:"ok"`
	Archive   string        `json:"archive"`
	Drives    []DriveBackup `json:"drives"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// ResolveArchive returns the directory to back up: p itself when it holds
// year directories, otherwise its "archive" subdirectory.
func ResolveArchive(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("reconcile: resolve archive: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("reconcile: archive %s: %w", abs, apperr.ErrDriveMissing)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("reconcile: archive is not a directory: %s", abs)
	}
	if hasYearDirs(abs) {
		return abs, nil
	}
	sub := filepath.Join(abs, "archive")
	if info, err := os.Stat(sub); err == nil && info.IsDir() {
		return sub, nil
	}
	return abs, nil
}

func hasYearDirs(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) != 4 {
			continue
		}
		if y, err := strconv.Atoi(e.Name()); err == nil && y >= 1900 && y <= 2100 {
			return true
		}
	}
	return false
}

// driveTarget picks the archive directory name on a drive root.
func driveTarget(root string) string {
	for _, name := range driveArchiveDirs {
		if info, err := os.Stat(filepath.Join(root, name)); err == nil && info.IsDir() {
			return name
		}
	}
	return driveArchiveDirs[0]
}

// BackupToDrives copies the local archive onto each drive's archive
// directory. The archive is authoritative, but an existing file with
// different content is never overwritten: it is reported as a conflict.
// All drives are opened, scanned and space-checked before the first copy.
func (s *Service) BackupToDrives(ctx context.Context, archivePath string, drivePaths []string, dryRun, rescan bool) (*BackupResult, error) {
	archive, err := ResolveArchive(archivePath)
	if err != nil {
		return nil, err
	}
	res := &BackupResult{Archive: archive}
	s.logger.Info("backup: starting",
		slog.String("archive", archive),
		slog.Any("drives", drivePaths),
		slog.Bool("dry_run", dryRun))

	drives := make([]*drive, 0, len(drivePaths))
	defer func() {
		for _, d := range drives {
			d.close()
		}
	}()
	need := make([]bool, 0, len(drivePaths))
	for _, p := range drivePaths {
		d, scan, err := openDrive(p, rescan)
		if err != nil {
			return nil, fmt.Errorf("reconcile: drive %s: %w", p, err)
		}
		drives = append(drives, d)
		need = append(need, scan)
	}
	if err := s.scanDrives(ctx, drives, need); err != nil {
		return nil, err
	}
	for _, d := range drives {
		files, err := d.index.Load()
		if err != nil {
			return nil, err
		}
		d.files = files
	}

	local, err := storage.NewRoot(archive)
	if err != nil {
		return nil, err
	}
	archiveFiles, err := s.scanner.Hash(ctx, local)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil, fmt.Errorf("reconcile: hash archive: %w", apperr.ErrCancelled)
	}
	if err != nil {
		return nil, err
	}
	s.logger.Info("backup: local archive hashed", slog.Int("files", len(archiveFiles)))

	rels := make([]string, 0, len(archiveFiles))
	for rel := range archiveFiles {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	plans := make([]DriveBackup, len(drives))
	for i, d := range drives {
		plans[i] = planBackup(d, rels, archiveFiles)
		s.logger.Info("backup: plan",
			slog.String("drive", plans[i].Drive),
			slog.String("target", plans[i].Target),
			slog.Int("to_copy", len(plans[i].ToCopy)),
			slog.Int("conflicts", len(plans[i].Conflicts)),
			slog.Uint64("bytes", plans[i].bytesNeeded))
		for _, c := range plans[i].Conflicts[:min(maxListed, len(plans[i].Conflicts))] {
			s.logger.Warn("backup: differing file on drive left untouched", slog.String("path", c))
		}
	}

	if !dryRun {
		for i, d := range drives {
			if err := s.syncer.preflight(d.root.Path(), plans[i].bytesNeeded); err != nil {
				return nil, err
			}
		}
	}

	res.OK = true
	for i, d := range drives {
		p := &plans[i]
		for _, rel := range p.ToCopy {
			if ctx.Err() != nil {
				res.Cancelled = true
				break
			}
			sum := archiveFiles[rel]
			if dryRun {
				s.logger.Info("backup: would copy", slog.String("path", rel), slog.Int64("size", sum.Size))
				p.Copied++
				p.BytesCopied += sum.Size
				continue
			}
			err := s.syncer.copyFile(ctx, local, d.root, rel, path.Join(p.Target, rel), sum, d.index)
			if errors.Is(err, apperr.ErrCancelled) {
				res.Cancelled = true
				break
			}
			if err != nil {
				p.Errors++
				continue
			}
			p.Copied++
			p.BytesCopied += sum.Size
		}
		s.logger.Info("backup: drive done",
			slog.String("drive", p.Drive),
			slog.Int("copied", p.Copied),
			slog.Int("errors", p.Errors),
			slog.Int64("bytes_copied", p.BytesCopied))
		if p.Errors > 0 {
			res.OK = false
		}
		if res.Cancelled {
			break
		}
	}
	if res.Cancelled {
		res.OK = false
	}
	res.Drives = plans
	return res, nil
}

func planBackup(d *drive, rels []string, archiveFiles map[string]models.FileSummary) DriveBackup {
	target := driveTarget(d.root.Path())
	p := DriveBackup{Drive: d.root.Path(), Target: target}
	for _, rel := range rels {
		sum := archiveFiles[rel]
		onDrive, ok := d.files[path.Join(target, rel)]
		switch {
		case !ok:
			p.ToCopy = append(p.ToCopy, rel)
			if sum.Size > 0 {
				p.bytesNeeded += uint64(sum.Size)
			}
		case onDrive.Checksum != sum.Checksum:
			p.Conflicts = append(p.Conflicts, rel)
			p.Skipped++
		}
	}
	return p
}
