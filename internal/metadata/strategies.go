package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// exifLayouts are the date formats seen in EXIF date tags.
var exifLayouts = []string{
	"2006:01:02 15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02",
	"2006-01-02",
}

// exifTags are read in order of preference.
var exifTags = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// EXIF reads the capture date from embedded EXIF data.
type EXIF struct{}

func (EXIF) Name() string { return "exif" }

func (EXIF) Extract(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode exif: %w", err)
	}
	for _, name := range exifTags {
		tag, err := x.Get(name)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if ts, ok := ParseDate(s); ok {
			return ts, nil
		}
	}
	return time.Time{}, ErrNoTimestamp
}

// ParseDate parses an EXIF-style date string in local time.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
	for _, layout := range exifLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

var filenamePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	// IMG_20231225_143045.jpg, PXL_20231225_143045123.jpg
	{regexp.MustCompile(`(\d{8}_\d{6})`), "20060102_150405"},
	// 2023-12-25_14-30-45.jpg, the archive naming itself
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2})`), "2006-01-02_15-04-05"},
}

// Filename parses a timestamp embedded in the file name.
type Filename struct{}

func (Filename) Name() string { return "filename" }

func (Filename) Extract(path string) (time.Time, error) {
	base := filepath.Base(path)
	for _, p := range filenamePatterns {
		m := p.re.FindStringSubmatch(base)
		if len(m) < 2 {
			continue
		}
		ts, err := time.ParseInLocation(p.layout, m[1], time.Local)
		if err != nil || ts.Year() < 1900 || ts.Year() > 2100 {
			continue
		}
		return ts, nil
	}
	return time.Time{}, ErrNoTimestamp
}

// ModTime falls back to the file's modification time.
type ModTime struct{}

func (ModTime) Name() string { return "mtime" }

func (ModTime) Extract(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
