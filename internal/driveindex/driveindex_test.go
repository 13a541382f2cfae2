package driveindex_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archivist/internal/checksum"
	"github.com/starford/archivist/internal/driveindex"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/testutil"
)

func TestScan_IndexesFiles(t *testing.T) {
	root, db := testutil.TestDrive(t)
	testutil.WriteFile(t, root.Path(), "a.jpg", "aaa")
	testutil.WriteFile(t, root.Path(), "2023/2023_12/b.jpg", "bbbb")
	testutil.WriteFile(t, root.Path(), ".hidden", "x")

	s := driveindex.NewScanner(testutil.Logger())
	res, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Written)

	files, err := db.Load()
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, models.FileSummary{Size: 3, Checksum: checksum.Sum([]byte("aaa"))}, files["a.jpg"])
	assert.Equal(t, int64(4), files["2023/2023_12/b.jpg"].Size)

	e, err := db.Entry("a.jpg")
	require.NoError(t, err)
	assert.Equal(t, root.Path(), e.DrivePath)
	assert.Equal(t, filepath.Join(root.Path(), "a.jpg"), e.FullPath)
}

func TestScan_SkipsUnchangedSize(t *testing.T) {
	root, db := testutil.TestDrive(t)
	p := testutil.WriteFile(t, root.Path(), "a.jpg", "aaa")

	s := driveindex.NewScanner(testutil.Logger())
	_, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)

	// Same size, different bytes: the size heuristic keeps the old digest.
	require.NoError(t, os.WriteFile(p, []byte("zzz"), 0o644))
	res, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unchanged)
	assert.Equal(t, 0, res.Written)
	files, _ := db.Load()
	assert.Equal(t, checksum.Sum([]byte("aaa")), files["a.jpg"].Checksum)

	// Size change forces a rehash.
	require.NoError(t, os.WriteFile(p, []byte("zzzz"), 0o644))
	res, err = s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Written)
	files, _ = db.Load()
	assert.Equal(t, checksum.Sum([]byte("zzzz")), files["a.jpg"].Checksum)
}

func TestScan_PurgesDeletedFiles(t *testing.T) {
	root, db := testutil.TestDrive(t)
	testutil.WriteFile(t, root.Path(), "keep.jpg", "k")
	gone := testutil.WriteFile(t, root.Path(), "gone.jpg", "g")

	s := driveindex.NewScanner(testutil.Logger())
	_, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)

	require.NoError(t, os.Remove(gone))
	res, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Purged)

	files, _ := db.Load()
	assert.Contains(t, files, "keep.jpg")
	assert.NotContains(t, files, "gone.jpg")
}

func TestScan_UnreadableDirIsSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root, db := testutil.TestDrive(t)
	testutil.WriteFile(t, root.Path(), "a.jpg", "a")
	testutil.WriteFile(t, root.Path(), "System Volume Information/old.jpg", "o")

	s := driveindex.NewScanner(testutil.Logger())
	_, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)

	locked := filepath.Join(root.Path(), "System Volume Information")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	res, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Purged)

	// Rows below the unreadable directory survive.
	files, err := db.Load()
	require.NoError(t, err)
	assert.Contains(t, files, "a.jpg")
	assert.Contains(t, files, "System Volume Information/old.jpg")
}

func TestScan_ManyBatches(t *testing.T) {
	root, db := testutil.TestDrive(t)
	for i := range 57 {
		testutil.WriteFile(t, root.Path(), fmt.Sprintf("d%d/img_%03d.jpg", i%5, i), fmt.Sprint(i))
	}

	var calls int
	s := driveindex.NewScanner(testutil.Logger(),
		driveindex.WithBatchSize(10),
		driveindex.WithMaxWorkers(3),
		driveindex.WithProgress(func(done, total int) { calls++ }))
	res, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)
	assert.Equal(t, 57, res.Written)
	assert.Equal(t, 6, calls, "one progress call per batch")

	n, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 57, n)
}

func TestScan_CancelledKeepsIndex(t *testing.T) {
	root, db := testutil.TestDrive(t)
	testutil.WriteFile(t, root.Path(), "a.jpg", "a")
	s := driveindex.NewScanner(testutil.Logger())
	_, err := s.Scan(context.Background(), root, db)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root.Path(), "a.jpg")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := s.Scan(ctx, root, db)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)

	// No purge on a cancelled scan.
	files, _ := db.Load()
	assert.Contains(t, files, "a.jpg")
}

func TestWorkers(t *testing.T) {
	s := driveindex.NewScanner(testutil.Logger())
	assert.Equal(t, 1, s.Workers(0))
	assert.Equal(t, 1, s.Workers(5))
	assert.Equal(t, 2, s.Workers(21))
	assert.Equal(t, 4, s.Workers(1000))
}

func TestAddEntryAndDelete(t *testing.T) {
	root, db := testutil.TestDrive(t)
	require.NoError(t, db.AddEntry(models.DriveFileEntry{RelativePath: "x.jpg", FullPath: filepath.Join(root.Path(), "x.jpg"), FileSize: 1, Checksum: "c"}))
	e, err := db.Entry("x.jpg")
	require.NoError(t, err)
	assert.Equal(t, root.Path(), e.DrivePath)
	assert.False(t, e.ScannedAt.IsZero())

	require.NoError(t, db.Delete([]string{"x.jpg"}))
	n, _ := db.Count()
	assert.Equal(t, 0, n)
}

func TestOpenDrive_Exists(t *testing.T) {
	dir := t.TempDir()
	assert.False(t, driveindex.Exists(dir))
	db, err := driveindex.OpenDrive(dir)
	require.NoError(t, err)
	defer db.Close()
	assert.True(t, driveindex.Exists(dir))
}
