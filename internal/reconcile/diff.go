// Package reconcile compares drive indexes and replays the differences as
// verified copies.
package reconcile

import (
	"sort"

	"github.com/starford/archivist/internal/models"
)

// Mismatch is a path present on both sides with different content.
type Mismatch struct {
	Path string             `json:"path"`
	A    models.FileSummary `json:"a"`
	B    models.FileSummary `json:"b"`
}

// Difference is the three-way set difference of two indexes. All slices
// are sorted by path.
type Difference struct {
	OnlyInA   []string   `json:"only_in_a"`
	OnlyInB   []string   `json:"only_in_b"`
	Differing []Mismatch `json:"differing"`
	Identical int        `json:"identical"`
}

// Diff compares two indexes by relative path and checksum. Which side of a
// mismatch is newer is never decided.
func Diff(a, b map[string]models.FileSummary) Difference {
	var d Difference
	for p, sa := range a {
		sb, ok := b[p]
		switch {
		case !ok:
			d.OnlyInA = append(d.OnlyInA, p)
		case sa.Checksum != sb.Checksum:
			d.Differing = append(d.Differing, Mismatch{Path: p, A: sa, B: sb})
		default:
			d.Identical++
		}
	}
	for p := range b {
		if _, ok := a[p]; !ok {
			d.OnlyInB = append(d.OnlyInB, p)
		}
	}
	sort.Strings(d.OnlyInA)
	sort.Strings(d.OnlyInB)
	sort.Slice(d.Differing, func(i, j int) bool { return d.Differing[i].Path < d.Differing[j].Path })
	return d
}

// TotalUnique is the number of distinct paths across both sides.
func (d Difference) TotalUnique() int {
	return len(d.OnlyInA) + len(d.OnlyInB) + len(d.Differing) + d.Identical
}

// NeedsSync is the number of paths that are not identical on both sides.
func (d Difference) NeedsSync() int {
	return len(d.OnlyInA) + len(d.OnlyInB) + len(d.Differing)
}

func sumSizes(paths []string, files map[string]models.FileSummary) uint64 {
	var n uint64
	for _, p := range paths {
		if s := files[p].Size; s > 0 {
			n += uint64(s)
		}
	}
	return n
}
