package archiveservice_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/archivist/internal/apperr"
	"github.com/starford/archivist/internal/archiveservice"
	"github.com/starford/archivist/internal/models"
	"github.com/starford/archivist/internal/organizer"
	"github.com/starford/archivist/internal/reconcile"
	"github.com/starford/archivist/internal/testutil"
)

func newService(t *testing.T, opts ...archiveservice.Option) (*archiveservice.Service, string, string) {
	t.Helper()
	inbox := t.TempDir()
	archive := t.TempDir()
	led := testutil.TestLedger(t)
	engine, err := organizer.New(organizer.Config{ArchiveRoot: archive},
		organizer.WithLedger(led),
		organizer.WithLogger(testutil.Logger()),
		organizer.WithExtractor(testutil.Timestamps{
			"a.jpg": time.Date(2023, 12, 25, 14, 30, 22, 0, time.Local),
		}))
	require.NoError(t, err)
	opts = append([]archiveservice.Option{archiveservice.WithInbox(inbox)}, opts...)
	svc := archiveservice.NewService(led, engine, reconcile.NewService(testutil.Logger()), opts...)
	return svc, inbox, archive
}

func TestOrganizeAndLookup(t *testing.T) {
	svc, inbox, archive := newService(t)
	ctx := context.Background()
	src := testutil.WriteFile(t, inbox, "a.jpg", "photo")

	stats, err := svc.Organize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	entry, err := svc.Lookup(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(archive, "2023", "2023_12", "2023-12-25_14-30-22.jpg"), entry.NewPath)

	st, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Ledger)
	assert.Equal(t, 1, st.LastRun.Processed)
	assert.Nil(t, st.Live)

	recent, err := svc.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
}

func TestLookup_Errors(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Lookup(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.Lookup(ctx, "relative/a.jpg")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.Lookup(ctx, "/nowhere/a.jpg")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPreview(t *testing.T) {
	svc, inbox, archive := newService(t)
	src := testutil.WriteFile(t, inbox, "a.jpg", "photo")

	o, err := svc.Preview(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, o.Success)
	assert.Equal(t, models.ActionDryRun, o.Action)
	assert.Equal(t, filepath.Join(archive, "2023", "2023_12", "2023-12-25_14-30-22.jpg"), o.TargetPath)
	assert.True(t, testutil.Exists(src))

	_, err = svc.Preview(context.Background(), " ")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestLiveStats(t *testing.T) {
	svc, _, _ := newService(t, archiveservice.WithLiveStats(func() models.Stats {
		return models.Stats{Processed: 7}
	}))
	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st.Live)
	assert.Equal(t, 7, st.Live.Processed)
}

func TestCompare(t *testing.T) {
	svc, _, _ := newService(t)
	a, b := t.TempDir(), t.TempDir()
	testutil.WriteFile(t, a, "2023/x.jpg", "x")
	testutil.WriteFile(t, a, "2023/same.jpg", "same")
	testutil.WriteFile(t, b, "2023/same.jpg", "same")

	rep, err := svc.Compare(context.Background(), a, b, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023/x.jpg"}, rep.OnlyInA)
	assert.Empty(t, rep.OnlyInB)
	assert.NotNil(t, rep.Differing)
	assert.Equal(t, 1, rep.Identical)
	assert.Equal(t, 1, rep.NeedsSync)

	_, err = svc.Compare(context.Background(), a, "", false)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestOrganize_NoInbox(t *testing.T) {
	svc, _, _ := newService(t, archiveservice.WithInbox(""))
	_, err := svc.Organize(context.Background())
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
