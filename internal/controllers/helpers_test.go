package controllers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// staticSettings serves fixed settings without a cache
type staticSettings struct {
	settings *models.Settings
}

func (s staticSettings) Get(ctx context.Context, ownerID string) (*models.Settings, error) {
	copied := *s.settings
	copied.OwnerID = ownerID
	return &copied, nil
}

// fakeSearcher returns one canned response per call, repeating the last
type fakeSearcher struct {
	mu        sync.Mutex
	name      string
	responses [][]models.SearchCandidate
	err       error
	calls     int
	queries   []string
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, query string, category models.Category) ([]models.SearchCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, nil
	}
	i := f.calls - 1
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	return f.responses[i], nil
}

type fakeDownloader struct {
	mu        sync.Mutex
	err       error
	submitted []models.SearchCandidate
}

func (f *fakeDownloader) SubmitDownload(ctx context.Context, candidate models.SearchCandidate) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, candidate)
	return "job-" + candidate.Title, nil
}

// fakeScanner reports files by movie id or episode key
type fakeScanner struct {
	movies   map[uint64]*models.FileInfo
	episodes map[string]*models.FileInfo
	err      error
}

func (f *fakeScanner) FindMovieFile(ctx context.Context, root string, movie *models.MonitoredMovie) (*models.FileInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.movies[movie.ID], nil
}

func (f *fakeScanner) FindEpisodeFile(ctx context.Context, root string, series *models.MonitoredSeries, season, episode int) (*models.FileInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.episodes[models.EpisodeKey(season, episode)], nil
}

var errBackend = errors.New("backend unavailable")

func intPtr(i int) *int { return &i }

func candidate(title string, seeders int) models.SearchCandidate {
	return models.SearchCandidate{
		Protocol: models.ProtocolTorrent,
		Title:    title,
		Source:   "test",
		Seeders:  intPtr(seeders),
	}
}

func newTestSearch(searchers ...Searcher) *SearchController {
	return NewSearchController(searchers, utils.NewBlacklist(), RetryPolicy{Retries: 2}, utils.NewTestLogger())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}
