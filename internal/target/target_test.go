package target

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/models"
)

var christmas = time.Date(2023, 12, 25, 14, 30, 45, 0, time.UTC)

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCanonical(t *testing.T) {
	r := New("archive", false, 0)
	assert.Equal(t,
		filepath.Join("archive", "2023", "2023_12", "2023-12-25_14-30-45.jpg"),
		r.Canonical(filepath.Join("in", "IMG_1.JPG"), christmas))

	rn := New("archive", true, 0)
	assert.Equal(t,
		filepath.Join("in", "sub", "2023-12-25_14-30-45.heic"),
		rn.Canonical(filepath.Join("in", "sub", "IMG_1.HEIC"), christmas))
}

func TestResolve_Free(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "a.jpg")
	write(t, src, "a")

	res, err := New(root, false, 0).Resolve(src, "", christmas)
	require.NoError(t, err)
	assert.Empty(t, res.Reason)
	assert.Equal(t, filepath.Join(root, "2023", "2023_12", "2023-12-25_14-30-45.jpg"), res.Path)
}

func TestResolve_Duplicate(t *testing.T) {
	root := t.TempDir()
	r := New(root, false, 0)
	src := filepath.Join(t.TempDir(), "a.jpg")
	write(t, src, "same")
	write(t, r.Canonical(src, christmas), "same")

	res, err := r.Resolve(src, "", christmas)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonDuplicate, res.Reason)
	assert.Equal(t, r.Canonical(src, christmas), res.Path)
}

func TestResolve_NameConflict(t *testing.T) {
	root := t.TempDir()
	r := New(root, false, 0)
	src := filepath.Join(t.TempDir(), "a.jpg")
	write(t, src, "mine")
	canon := r.Canonical(src, christmas)
	write(t, canon, "theirs")

	res, err := r.Resolve(src, "", christmas)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonNameConflict, res.Reason)
	assert.Equal(t, filepath.Join(filepath.Dir(canon), "2023-12-25_14-30-45_001.jpg"), res.Path)

	// _001 taken by other content, so _002 is next.
	write(t, res.Path, "other")
	res, err = r.Resolve(src, "", christmas)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(canon), "2023-12-25_14-30-45_002.jpg"), res.Path)

	// Once placed under a suffix, the same content is a duplicate there.
	write(t, res.Path, "mine")
	res, err = r.Resolve(src, "", christmas)
	require.NoError(t, err)
	assert.Equal(t, models.ReasonDuplicate, res.Reason)
	assert.Equal(t, filepath.Join(filepath.Dir(canon), "2023-12-25_14-30-45_002.jpg"), res.Path)
}

func TestResolve_Exhausted(t *testing.T) {
	root := t.TempDir()
	r := New(root, false, 3)
	src := filepath.Join(t.TempDir(), "a.jpg")
	write(t, src, "mine")
	canon := r.Canonical(src, christmas)
	write(t, canon, "x")
	dir := filepath.Dir(canon)
	for _, n := range []string{"_001", "_002", "_003"} {
		write(t, filepath.Join(dir, "2023-12-25_14-30-45"+n+".jpg"), "x"+n)
	}

	_, err := r.Resolve(src, "", christmas)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNamespaceExhausted))
}

func TestContains(t *testing.T) {
	base := t.TempDir()
	archive := filepath.Join(base, "archive")
	require.NoError(t, os.MkdirAll(filepath.Join(archive, "2023"), 0o755))

	assert.True(t, Contains(archive, filepath.Join(archive, "2023", "x.jpg")))
	assert.True(t, Contains(archive, archive))
	assert.False(t, Contains(archive, filepath.Join(base, "archive-old", "x.jpg")))
	assert.False(t, Contains(archive, filepath.Join(base, "x.jpg")))

	// A symlink pointing into the archive is still inside it.
	link := filepath.Join(base, "alias")
	require.NoError(t, os.Symlink(archive, link))
	assert.True(t, Contains(archive, filepath.Join(link, "2023")))

	// Relative spelling of the same directory.
	wd, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(wd) })
	require.NoError(t, os.Chdir(base))
	assert.True(t, Contains("archive", filepath.Join(archive, "2023")))
}

func TestLooksArchived(t *testing.T) {
	cases := map[string]bool{
		"/photos/2023/2023_12/x.jpg":       true,
		"/photos/2023/2023-12/x.jpg":       true,
		"2019/2019_01/sub/x.jpg":           true,
		"/photos/2023/12/x.jpg":            false,
		"/photos/2023/2022_12/x.jpg":       false,
		"/photos/2023/x.jpg":               false,
		"/photos/2023/2023_12":             false, // last segment is the file
		"/photos/holiday/2023_12/x.jpg":    false,
		"/photos/2023/2023_12_extra/x.jpg": false,
	}
	for path, want := range cases {
		assert.Equal(t, want, LooksArchived(path), path)
	}
}
