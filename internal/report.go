package internal

import (
	"fmt"
	"io"
	"strconv"

	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/reconcile"
)

// Report list limits.
const (
	maxMissingListed   = 20
	maxDifferingListed = 10
)

func printRunStats(w io.Writer, s models.Stats, dryRun bool) {
	fmt.Fprintln(w, "=== Processing Complete ===")
	if dryRun {
		fmt.Fprintln(w, "(dry run: nothing was changed)")
	}
	fmt.Fprintf(w, "Files processed:    %d\n", s.Processed)
	fmt.Fprintf(w, "Files skipped:      %d\n", s.Skipped)
	fmt.Fprintf(w, "Duplicates handled: %d\n", s.Duplicates)
	fmt.Fprintf(w, "Errors:             %d\n", s.Errors)
	if s.Cancelled {
		fmt.Fprintln(w, "Run was cancelled before all files were processed.")
	}
}

func printComparison(w io.Writer, c *reconcile.Comparison) {
	fmt.Fprintf(w, "Drive A: %s (%d files)\n", c.DriveA, c.FilesA)
	fmt.Fprintf(w, "Drive B: %s (%d files)\n", c.DriveB, c.FilesB)

	printMissing(w, "Drive B", c.OnlyInA, func(p string) int64 { return c.Size(0, p) })
	printMissing(w, "Drive A", c.OnlyInB, func(p string) int64 { return c.Size(1, p) })

	fmt.Fprintf(w, "\n=== Files with Different Content (%d files) ===\n", len(c.Differing))
	if len(c.Differing) == 0 {
		fmt.Fprintln(w, "  All common files have identical content")
	}
	for i, m := range c.Differing {
		if i == maxDifferingListed {
			fmt.Fprintf(w, "  ... and %d more files\n", len(c.Differing)-maxDifferingListed)
			break
		}
		fmt.Fprintf(w, "  %s\n", m.Path)
		fmt.Fprintf(w, "    Drive A: %s bytes, checksum: %s...\n", commas(m.A.Size), short(m.A.Checksum))
		fmt.Fprintf(w, "    Drive B: %s bytes, checksum: %s...\n", commas(m.B.Size), short(m.B.Checksum))
	}

	fmt.Fprintln(w, "\n=== Summary ===")
	fmt.Fprintf(w, "Total unique files: %d\n", c.TotalUnique())
	fmt.Fprintf(w, "Identical files: %d\n", c.Identical)
	fmt.Fprintf(w, "Files needing sync: %d\n", c.NeedsSync())
	if c.NeedsSync() == 0 {
		fmt.Fprintln(w, "Drives are in sync.")
	} else {
		fmt.Fprintln(w, "Drives need synchronization.")
	}
}

func printMissing(w io.Writer, from string, paths []string, size func(string) int64) {
	fmt.Fprintf(w, "\n=== Files Missing from %s (%d files) ===\n", from, len(paths))
	if len(paths) == 0 {
		fmt.Fprintf(w, "  No files missing from %s\n", from)
		return
	}
	for i, p := range paths {
		if i == maxMissingListed {
			fmt.Fprintf(w, "  ... and %d more files\n", len(paths)-maxMissingListed)
			return
		}
		fmt.Fprintf(w, "  %s (%s bytes)\n", p, commas(size(p)))
	}
}

func printSyncStats(w io.Writer, res *reconcile.SyncResult, dryRun bool) {
	s := res.Stats
	fmt.Fprintln(w, "\n=== Sync ===")
	if dryRun {
		fmt.Fprintln(w, "(dry run: counts are what would be copied)")
	}
	fmt.Fprintf(w, "Copied to A:   %d\n", s.CopiedToA)
	fmt.Fprintf(w, "Copied to B:   %d\n", s.CopiedToB)
	fmt.Fprintf(w, "Skipped:       %d (content differs, resolve manually)\n", s.Skipped)
	fmt.Fprintf(w, "Errors:        %d\n", s.Errors)
	fmt.Fprintf(w, "Bytes copied:  %s\n", commas(s.BytesCopied))
	if s.Cancelled {
		fmt.Fprintln(w, "Sync was cancelled before all files were copied.")
	}
	if res.OK {
		fmt.Fprintln(w, "Result: OK")
	} else {
		fmt.Fprintln(w, "Result: FAILED")
	}
}

func printBackup(w io.Writer, res *reconcile.BackupResult, dryRun bool) {
	fmt.Fprintf(w, "Archive: %s\n", res.Archive)
	for _, d := range res.Drives {
		fmt.Fprintf(w, "\n=== %s -> %s ===\n", d.Drive, d.Target)
		verb := "Copied"
		if dryRun {
			verb = "Would copy"
		}
		fmt.Fprintf(w, "%s: %d files (%s bytes)\n", verb, d.Copied, commas(d.BytesCopied))
		fmt.Fprintf(w, "Already present: %d\n", d.Skipped)
		fmt.Fprintf(w, "Errors: %d\n", d.Errors)
		if len(d.Conflicts) > 0 {
			fmt.Fprintf(w, "Conflicts (different content on drive, not overwritten): %d\n", len(d.Conflicts))
			for i, p := range d.Conflicts {
				if i == maxDifferingListed {
					fmt.Fprintf(w, "  ... and %d more files\n", len(d.Conflicts)-maxDifferingListed)
					break
				}
				fmt.Fprintf(w, "  %s\n", p)
			}
		}
	}
	if res.Cancelled {
		fmt.Fprintln(w, "\nBackup was cancelled.")
	}
	if res.OK {
		fmt.Fprintln(w, "\nResult: OK")
	} else {
		fmt.Fprintln(w, "\nResult: FAILED")
	}
}

// commas formats n with thousands separators.
func commas(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := n < 0
	if neg {
		s = s[1:]
	}
	out := make([]byte, 0, len(s)+len(s)/3)
	for i := range len(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

func short(sum string) string {
	if len(sum) > 16 {
		return sum[:16]
	}
	return sum
}
