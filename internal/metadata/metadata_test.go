package metadata

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixed struct {
	name string
	ts   time.Time
	err  error
}

func (f fixed) Name() string { return f.name }
func (f fixed) Extract(string) (time.Time, error) { return f.ts, f.err }

type panicky struct{}

func (panicky) Name() string { return "panicky" }
func (panicky) Extract(string) (time.Time, error) { panic("corrupt segment") }

func TestParseDate(t *testing.T) {
	cases := map[string]time.Time{
		"2023:12:25 14:30:45":      time.Date(2023, 12, 25, 14, 30, 45, 0, time.Local),
		"2023-12-25 14:30:45":      time.Date(2023, 12, 25, 14, 30, 45, 0, time.Local),
		"2023:12:25":               time.Date(2023, 12, 25, 0, 0, 0, 0, time.Local),
		"2023-12-25":               time.Date(2023, 12, 25, 0, 0, 0, 0, time.Local),
		" 2023:12:25 14:30:45\x00": time.Date(2023, 12, 25, 14, 30, 45, 0, time.Local),
	}
	for in, want := range cases {
		got, ok := ParseDate(in)
		require.True(t, ok, in)
		assert.True(t, want.Equal(got), "%q: got %v", in, got)
	}
	_, ok := ParseDate("0000:00:00 00:00:00")
	assert.False(t, ok)
}

func TestFilename(t *testing.T) {
	want := time.Date(2023, 12, 25, 14, 30, 45, 0, time.Local)
	for _, name := range []string{"IMG_20231225_143045.jpg", "2023-12-25_14-30-45.jpg", "/x/PXL_20231225_143045123.jpg"} {
		got, err := Filename{}.Extract(name)
		require.NoError(t, err, name)
		assert.True(t, want.Equal(got), name)
	}
	_, err := Filename{}.Extract("holiday.jpg")
	assert.ErrorIs(t, err, ErrNoTimestamp)
}

func TestModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	mt := time.Date(2020, 5, 6, 7, 8, 9, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mt, mt))

	got, err := ModTime{}.Extract(path)
	require.NoError(t, err)
	assert.True(t, mt.Equal(got))
}

func TestEXIF_NoExifData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not a jpeg"), 0o644))
	_, err := EXIF{}.Extract(path)
	assert.Error(t, err)
}

func TestChain_Order(t *testing.T) {
	first := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	second := time.Date(2002, 2, 2, 0, 0, 0, 0, time.UTC)

	c := NewChain(discard(),
		fixed{name: "broken", err: errors.New("boom")},
		panicky{},
		fixed{name: "empty", err: ErrNoTimestamp},
		fixed{name: "first", ts: first},
		fixed{name: "second", ts: second},
	)
	got, ok := c.Timestamp("x.jpg")
	require.True(t, ok)
	assert.Equal(t, first, got)
}

func TestChain_Absent(t *testing.T) {
	c := NewChain(discard(), fixed{name: "empty", err: ErrNoTimestamp}, panicky{})
	_, ok := c.Timestamp("x.jpg")
	assert.False(t, ok)
}

func TestDefault_MtimeFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "holiday.jpg")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, ok := Default(discard(), false).Timestamp(path)
	assert.False(t, ok, "without mtime fallback nothing is found")

	_, ok = Default(discard(), true).Timestamp(path)
	assert.True(t, ok)
}
