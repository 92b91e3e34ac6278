package controllers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type watcherFixture struct {
	db       *models.Database
	settings *models.Settings
	watcher  *WatcherController
	source   string
	dest     string
}

func newWatcherFixture(t *testing.T, autoApprove bool) *watcherFixture {
	t.Helper()
	root := t.TempDir()
	f := &watcherFixture{
		db:       openTestDB(t),
		settings: models.DefaultSettings("alice"),
		source:   filepath.Join(root, "downloads"),
		dest:     filepath.Join(root, "movies"),
	}
	require.NoError(t, os.MkdirAll(f.source, 0755))
	require.NoError(t, os.MkdirAll(f.dest, 0755))

	f.settings.WatcherEnabled = true
	f.settings.WatcherAutoApprove = autoApprove
	f.settings.MovieWatchDirectory = f.source
	f.settings.MovieDirectory = f.dest

	f.watcher = NewWatcherController(f.db, staticSettings{f.settings}, WatcherConfig{RecentLimit: 3}, utils.NewTestLogger())
	return f
}

func TestScanQueuesFilesForApproval(t *testing.T) {
	f := newWatcherFixture(t, false)
	writeFile(t, filepath.Join(f.source, "Heat (1995)", "Heat.1995.1080p.mkv"), "movie")
	writeFile(t, filepath.Join(f.source, "Heat (1995)", "Heat.nfo"), "info")

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 1, result.Pending)

	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, filepath.Join(f.dest, "Heat (1995)", "Heat.1995.1080p.mkv"), pending[0].DestPath)
	assert.Equal(t, models.MediaKindMovie, pending[0].MediaKind)
	assert.Equal(t, int64(5), pending[0].Size)

	// Queued files are not enqueued twice
	result, err = f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, result.Pending)

	pending, err = f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestApproveMovesPendingFile(t *testing.T) {
	f := newWatcherFixture(t, false)
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "alien")

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	approved, err := f.watcher.Approve(context.Background(), "alice", pending[0].ID)
	require.NoError(t, err)
	assert.NoFileExists(t, src)
	assert.FileExists(t, approved.DestPath)

	pending, err = f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Empty(t, pending)

	status, err := f.watcher.Status("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.FilesProcessed)
	assert.Equal(t, 1, status.Stats.Movies)
	require.NotEmpty(t, status.Recent)
	assert.Equal(t, ActionApproved, status.Recent[0].Action)
}

func TestApproveCollisionKeepsBothFiles(t *testing.T) {
	f := newWatcherFixture(t, false)
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "new")

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	dest := filepath.Join(f.dest, "Alien.1979.mkv")
	writeFile(t, dest, "existing")

	_, err = f.watcher.Approve(context.Background(), "alice", pending[0].ID)
	assert.ErrorIs(t, err, utils.ErrDestinationExists)

	assert.FileExists(t, src)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(content))

	pending, err = f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	status, err := f.watcher.Status("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Stats.Errors)
}

func TestRejectIsNotOfferedAgain(t *testing.T) {
	f := newWatcherFixture(t, false)
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "alien")

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.watcher.Reject(context.Background(), "alice", pending[0].ID)
	require.NoError(t, err)
	assert.FileExists(t, src)

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, result.Pending)

	pending, err = f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestFileRejectedDuringStabilityWaitIsNotQueued(t *testing.T) {
	f := newWatcherFixture(t, false)
	f.watcher.cfg.StabilityWait = 300 * time.Millisecond
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "alien")

	type scan struct {
		result *ScanResult
		err    error
	}
	done := make(chan scan, 1)
	go func() {
		result, err := f.watcher.ScanUser(context.Background(), "alice")
		done <- scan{result, err}
	}()

	// Lands while the scan sleeps between its two reads
	time.Sleep(100 * time.Millisecond)
	f.watcher.markProcessed(f.watcher.owner("alice"), src)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, 1, got.result.Found)
	assert.Zero(t, got.result.Pending)

	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestPendingIsScopedToOwner(t *testing.T) {
	f := newWatcherFixture(t, false)
	writeFile(t, filepath.Join(f.source, "Alien.1979.mkv"), "alien")

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.watcher.Approve(context.Background(), "bob", pending[0].ID)
	assert.ErrorIs(t, err, ErrPendingNotFound)
	_, err = f.watcher.Reject(context.Background(), "alice", "missing-id")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestAutoApproveMovesFiles(t *testing.T) {
	f := newWatcherFixture(t, true)
	src := filepath.Join(f.source, "Season 01", "Show.S01E01.mkv")
	writeFile(t, src, "episode")

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Moved)
	assert.NoFileExists(t, src)
	assert.FileExists(t, filepath.Join(f.dest, "Season 01", "Show.S01E01.mkv"))

	pending, err := f.watcher.PendingFiles("alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestAutoApproveSkipsExistingDestination(t *testing.T) {
	f := newWatcherFixture(t, true)
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "new")
	writeFile(t, filepath.Join(f.dest, "Alien.1979.mkv"), "existing")

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.FileExists(t, src)

	// Skipped files are remembered
	result, err = f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Zero(t, result.Skipped)
	assert.Equal(t, 1, result.Found)
}

func TestScanWithoutPairs(t *testing.T) {
	f := newWatcherFixture(t, false)
	f.settings.MovieWatchDirectory = ""

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoDirectory)
}

func TestScanMissingSourceDirectory(t *testing.T) {
	f := newWatcherFixture(t, false)
	require.NoError(t, os.RemoveAll(f.source))

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoDirectory)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.Failed)
}

func TestRecentActivityIsBounded(t *testing.T) {
	f := newWatcherFixture(t, true)
	for _, name := range []string{"A.mkv", "B.mkv", "C.mkv", "D.mkv", "E.mkv"} {
		writeFile(t, filepath.Join(f.source, name), name)
	}

	result, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 5, result.Moved)

	status, err := f.watcher.Status("alice")
	require.NoError(t, err)
	assert.Len(t, status.Recent, 3)
	assert.Equal(t, 5, status.Stats.FilesProcessed)
}

func TestPruneProcessedForgetsRemovedFiles(t *testing.T) {
	f := newWatcherFixture(t, true)
	src := filepath.Join(f.source, "Alien.1979.mkv")
	writeFile(t, src, "new")
	writeFile(t, filepath.Join(f.dest, "Alien.1979.mkv"), "existing")

	_, err := f.watcher.ScanUser(context.Background(), "alice")
	require.NoError(t, err)
	status, err := f.watcher.Status("alice")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Tracking)

	require.NoError(t, os.Remove(src))
	assert.Equal(t, 1, f.watcher.PruneProcessed("alice"))
	status, err = f.watcher.Status("alice")
	require.NoError(t, err)
	assert.Zero(t, status.Tracking)
}
