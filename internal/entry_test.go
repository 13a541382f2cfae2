package internal

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archivist/internal/testutil"
)

func testOptions(t *testing.T, mutate func(*Config)) ([]Option, *bytes.Buffer) {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Organizer.ArchiveRoot = filepath.Join(t.TempDir(), "archive")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	var out bytes.Buffer
	return []Option{WithConfig(cfg), WithLogger(testutil.Logger()), WithOutput(&out)}, &out
}

func TestRunOrganize(t *testing.T) {
	var archive string
	opts, out := testOptions(t, func(c *Config) { archive = c.Organizer.ArchiveRoot })
	input := t.TempDir()
	src := testutil.WriteFile(t, input, "IMG_20231225_143022.JPG", "pixels")
	testutil.WriteFile(t, input, "readme.txt", "not a photo")

	stats, err := RunOrganize(context.Background(), input, opts...)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Errors)
	assert.False(t, testutil.Exists(src))
	assert.Equal(t, "pixels", testutil.ReadFile(t, filepath.Join(archive, "2023", "2023_12", "2023-12-25_14-30-22.jpg")))
	assert.Contains(t, out.String(), "Files processed:    1")

	// A second run over the now-empty input is a no-op.
	stats, err = RunOrganize(context.Background(), input, opts...)
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
}

func TestRunOrganize_DryRunCreatesNothing(t *testing.T) {
	var archive string
	opts, out := testOptions(t, func(c *Config) {
		c.Organizer.DryRun = true
		archive = c.Organizer.ArchiveRoot
	})
	input := t.TempDir()
	src := testutil.WriteFile(t, input, "IMG_20231225_143022.jpg", "pixels")

	stats, err := RunOrganize(context.Background(), input, opts...)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	assert.True(t, testutil.Exists(src))
	assert.False(t, testutil.Exists(archive), "dry run must not create the archive root")
	assert.Contains(t, out.String(), "dry run")
}

func TestRunOrganize_MissingInput(t *testing.T) {
	opts, _ := testOptions(t, nil)
	_, err := RunOrganize(context.Background(), filepath.Join(t.TempDir(), "absent"), opts...)
	assert.Error(t, err)
}

func TestRunOrganize_RequiresConfig(t *testing.T) {
	_, err := RunOrganize(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestRunCompare_TruncatesLists(t *testing.T) {
	opts, out := testOptions(t, nil)
	a, b := t.TempDir(), t.TempDir()
	for i := range 25 {
		testutil.WriteFile(t, a, fmt.Sprintf("2023/only_a_%02d.jpg", i), "a")
	}
	for i := range 12 {
		rel := fmt.Sprintf("2023/diff_%02d.jpg", i)
		testutil.WriteFile(t, a, rel, "left")
		testutil.WriteFile(t, b, rel, "right")
	}

	c, err := RunCompare(context.Background(), a, b, false, opts...)
	require.NoError(t, err)
	assert.Len(t, c.OnlyInA, 25)
	assert.Len(t, c.Differing, 12)

	report := out.String()
	assert.Contains(t, report, "Files Missing from Drive B (25 files)")
	assert.Contains(t, report, "... and 5 more files")
	assert.Contains(t, report, "... and 2 more files")
	assert.Contains(t, report, "No files missing from Drive A")
	assert.Contains(t, report, "Files needing sync: 37")
	assert.NotContains(t, report, "only_a_20.jpg")
}

func TestRunSync(t *testing.T) {
	opts, out := testOptions(t, nil)
	a, b := t.TempDir(), t.TempDir()
	testutil.WriteFile(t, a, "2023/a.jpg", "a")
	testutil.WriteFile(t, b, "2023/b.jpg", "b")

	res, err := RunSync(context.Background(), a, b, false, false, opts...)
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 1, res.Stats.CopiedToA)
	assert.Equal(t, 1, res.Stats.CopiedToB)
	assert.Equal(t, "b", testutil.ReadFile(t, filepath.Join(a, "2023", "b.jpg")))
	assert.Contains(t, out.String(), "Result: OK")
}

func TestRunBackup_DryRun(t *testing.T) {
	opts, out := testOptions(t, nil)
	archive := t.TempDir()
	testutil.WriteFile(t, archive, "2023/2023_12/x.jpg", "x")
	drive := t.TempDir()

	res, err := RunBackup(context.Background(), archive, []string{drive}, false, true, opts...)
	require.NoError(t, err)
	assert.True(t, res.OK)
	require.Len(t, res.Drives, 1)
	assert.Equal(t, 1, res.Drives[0].Copied)
	assert.False(t, testutil.Exists(filepath.Join(drive, "archive", "2023", "2023_12", "x.jpg")))
	assert.Contains(t, out.String(), "Would copy: 1 files")
}

func TestCommas(t *testing.T) {
	cases := map[int64]string{
		0:        "0",
		999:      "999",
		1000:     "1,000",
		1234567:  "1,234,567",
		-1234567: "-1,234,567",
	}
	for n, want := range cases {
		assert.Equal(t, want, commas(n), "commas(%d)", n)
	}
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(ApplicationConfig{LogFormat: LogFormatText}, &buf)
	l.Info("organizer: moved")
	assert.True(t, strings.Contains(buf.String(), "msg=\"organizer: moved\""), buf.String())
}
