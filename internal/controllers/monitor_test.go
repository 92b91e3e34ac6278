package controllers

import (
	"context"
	"testing"
	"time"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type monitorFixture struct {
	db         *models.Database
	settings   *models.Settings
	searcher   *fakeSearcher
	downloader *fakeDownloader
	scanner    *fakeScanner
	monitor    *MonitorController
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		db:         openTestDB(t),
		settings:   models.DefaultSettings("alice"),
		searcher:   &fakeSearcher{name: "fake"},
		downloader: &fakeDownloader{},
		scanner:    &fakeScanner{},
	}
	f.settings.MovieDirectory = "/library/movies"
	f.settings.SeriesDirectory = "/library/series"

	logger := utils.NewTestLogger()
	download := NewDownloadController(f.db, f.downloader, time.Second, logger)
	f.monitor = NewMonitorController(f.db, staticSettings{f.settings}, f.scanner, newTestSearch(f.searcher),
		download, nil, MonitorConfig{DownloadTimeout: time.Hour}, logger)
	return f
}

func (f *monitorFixture) addMovie(t *testing.T, title string, year int) *models.MonitoredMovie {
	t.Helper()
	release := time.Date(year, 7, 16, 0, 0, 0, 0, time.UTC)
	movie := &models.MonitoredMovie{OwnerID: "alice", ExternalID: year, Title: title, ReleaseDate: &release}
	require.NoError(t, f.db.CreateMovie(movie))
	return movie
}

func TestCheckMovieGrabsMostSeededCandidate(t *testing.T) {
	f := newMonitorFixture(t)
	f.settings.QualityPolicy = models.PolicyHD1080p
	movie := f.addMovie(t, "Inception", 2010)

	f.searcher.responses = [][]models.SearchCandidate{{
		candidate("Inception.2010.1080p.BluRay.x264-A", 5),
		candidate("Inception.2010.1080p.WEB-DL.x264-B", 50),
		candidate("Inception.2010.720p.BluRay.x264-D", 500),
		candidate("Inception.2010.1080p.HDTV.x264-C", 20),
	}}

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGrabbed, outcome)

	require.Len(t, f.downloader.submitted, 1)
	assert.Equal(t, "Inception.2010.1080p.WEB-DL.x264-B", f.downloader.submitted[0].Title)
	assert.Equal(t, []string{"Inception 2010"}, f.searcher.queries)

	stored, err := f.db.GetMovie(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDownloading, stored.Status)
	assert.NotNil(t, stored.DownloadingFrom)
	assert.Equal(t, "Inception.2010.1080p.WEB-DL.x264-B", stored.ReleaseTitle)

	history, err := f.db.GetHistoryByOwner("alice")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "job-Inception.2010.1080p.WEB-DL.x264-B", history[0].DownloadClientID)
	assert.Equal(t, models.HistoryGrabbed, history[0].Status)
}

func TestCheckMovieDownloadedIsSticky(t *testing.T) {
	f := newMonitorFixture(t)
	movie := f.addMovie(t, "Heat", 1995)
	movie.Status = models.StatusDownloaded
	movie.FileExists = true
	movie.FilePath = "/library/movies/Heat (1995).mkv"
	require.NoError(t, f.db.UpdateMovie(movie))

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")

	// Not found
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownloaded, outcome)

	// Scanner failure
	f.scanner.err = errBackend
	outcome, err = f.monitor.CheckMovie(context.Background(), settings, movie)
	assert.Error(t, err)
	assert.Equal(t, OutcomeError, outcome)

	stored, err := f.db.GetMovie(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDownloaded, stored.Status)
	assert.True(t, stored.FileExists)
	assert.Zero(t, f.searcher.calls)
}

func TestCheckMovieRecordsFoundFile(t *testing.T) {
	f := newMonitorFixture(t)
	movie := f.addMovie(t, "Alien", 1979)
	f.scanner.movies = map[uint64]*models.FileInfo{
		movie.ID: {Path: "/library/movies/Alien.1979.1080p.mkv", Name: "Alien.1979.1080p.mkv", Size: 4 << 30},
	}

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownloaded, outcome)

	stored, err := f.db.GetMovie(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDownloaded, stored.Status)
	assert.Equal(t, "/library/movies/Alien.1979.1080p.mkv", stored.FilePath)
	assert.Equal(t, int64(4<<30), stored.FileSize)
	assert.Zero(t, f.searcher.calls)
}

func TestCheckMovieSubmitFailureSetsError(t *testing.T) {
	f := newMonitorFixture(t)
	movie := f.addMovie(t, "Arrival", 2016)
	f.searcher.responses = [][]models.SearchCandidate{{candidate("Arrival.2016.1080p.WEB-DL", 10)}}
	f.downloader.err = errBackend

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, OutcomeError, outcome)

	stored, err := f.db.GetMovie(movie.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, stored.Status)
	assert.Contains(t, stored.LastError, "backend unavailable")
}

func TestCheckMovieMissingWithoutAutoDownload(t *testing.T) {
	f := newMonitorFixture(t)
	f.settings.AutoDownload = false
	movie := f.addMovie(t, "Dune", 2021)

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, outcome)
	assert.Equal(t, models.StatusMissing, movie.Status)
	assert.Zero(t, f.searcher.calls)
}

func TestCheckMovieNoMatchingQualityIsMissing(t *testing.T) {
	f := newMonitorFixture(t)
	f.settings.QualityPolicy = models.PolicyUltraHD
	movie := f.addMovie(t, "Tenet", 2020)
	f.searcher.responses = [][]models.SearchCandidate{{candidate("Tenet.2020.1080p.WEB-DL", 100)}}

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMissing, outcome)
	assert.Empty(t, f.downloader.submitted)
}

func TestCheckMovieStuckDownloadIsRetried(t *testing.T) {
	f := newMonitorFixture(t)
	movie := f.addMovie(t, "Memento", 2000)
	since := time.Now().Add(-2 * time.Hour)
	movie.Status = models.StatusDownloading
	movie.DownloadingFrom = &since

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMonitoring, outcome)
	assert.Equal(t, models.StatusMonitoring, movie.Status)
	assert.Nil(t, movie.DownloadingFrom)

	// A recent download is left alone
	recent := time.Now()
	movie.Status = models.StatusDownloading
	movie.DownloadingFrom = &recent
	outcome, err = f.monitor.CheckMovie(context.Background(), settings, movie)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownloading, outcome)
}

func TestCheckMovieWithoutDirectory(t *testing.T) {
	f := newMonitorFixture(t)
	f.settings.MovieDirectory = ""
	movie := f.addMovie(t, "Up", 2009)

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckMovie(context.Background(), settings, movie)
	assert.ErrorIs(t, err, ErrNoDirectory)
	assert.Equal(t, OutcomeNoDirectory, outcome)
}

func TestCheckSeriesGrabsOnlyMissingEpisodes(t *testing.T) {
	f := newMonitorFixture(t)
	series := &models.MonitoredSeries{OwnerID: "alice", ExternalID: 1396, Title: "Breaking Bad"}
	series.SelectEpisodes([]string{"1-1", "1-2"})
	require.NoError(t, f.db.CreateSeries(series))

	f.scanner.episodes = map[string]*models.FileInfo{
		"1-1": {Path: "/library/series/Breaking Bad/Season 01/Breaking.Bad.S01E01.mkv"},
	}
	f.searcher.responses = [][]models.SearchCandidate{{
		candidate("Breaking.Bad.S01E03.1080p.WEB-DL", 900),
		candidate("Breaking.Bad.S01E02.1080p.WEB-DL", 40),
		candidate("Breaking.Bad.S01E02.720p.HDTV", 60),
	}}

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckSeries(context.Background(), settings, series)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGrabbed, outcome)

	require.Len(t, f.downloader.submitted, 1)
	assert.Equal(t, "Breaking.Bad.S01E02.720p.HDTV", f.downloader.submitted[0].Title)
	assert.Equal(t, []string{"Breaking Bad S01E02"}, f.searcher.queries)

	stored, err := f.db.GetSeries(series.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDownloading, stored.Status)
	assert.True(t, stored.HasEpisodeFile("1-1"))
	assert.Contains(t, stored.GrabbedEpisodes, "1-2")

	// The grabbed episode is not searched again while the download runs
	outcome, err = f.monitor.CheckSeries(context.Background(), settings, stored)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownloading, outcome)
	assert.Equal(t, 1, f.searcher.calls)
}

func TestCheckSeriesCompleteIsDownloaded(t *testing.T) {
	f := newMonitorFixture(t)
	series := &models.MonitoredSeries{OwnerID: "alice", ExternalID: 1399, Title: "Dark"}
	series.SelectEpisodes([]string{"1-1"})
	require.NoError(t, f.db.CreateSeries(series))
	f.scanner.episodes = map[string]*models.FileInfo{"1-1": {Path: "/library/series/Dark/Dark.S01E01.mkv"}}

	settings, _ := staticSettings{f.settings}.Get(context.Background(), "alice")
	outcome, err := f.monitor.CheckSeries(context.Background(), settings, series)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDownloaded, outcome)
	assert.Equal(t, models.StatusDownloaded, series.Status)
}

func TestCheckUserAggregatesEntityFailures(t *testing.T) {
	f := newMonitorFixture(t)
	ok := f.addMovie(t, "Alien", 1979)
	f.addMovie(t, "Aliens", 1986)
	f.scanner.movies = map[uint64]*models.FileInfo{ok.ID: {Path: "/library/movies/Alien.mkv"}}
	f.searcher.responses = [][]models.SearchCandidate{{candidate("Aliens.1986.1080p.BluRay", 10)}}
	f.downloader.err = errBackend

	result, err := f.monitor.CheckUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Checked)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Aliens", result.Errors[0].Path)
}
