package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errSubmit = errors.New("submission failed")

// Outcome is the result of checking one monitored entity
type Outcome string

const (
	OutcomeDownloaded  Outcome = "downloaded"
	OutcomeGrabbed     Outcome = "grabbed"
	OutcomeDownloading Outcome = "downloading"
	OutcomeMissing     Outcome = "missing"
	OutcomeMonitoring  Outcome = "monitoring"
	OutcomeUnavailable Outcome = "unavailable"
	OutcomeNoDirectory Outcome = "no_directory"
	OutcomeError       Outcome = "error"
)

// MonitorConfig holds the monitor's pacing and timeouts
type MonitorConfig struct {
	EntityDelay     time.Duration // pause between entities of one batch
	DownloadTimeout time.Duration // downloading entities older than this are searched again
}

// CheckResult aggregates one CheckUser batch
type CheckResult struct {
	OwnerID    string        `json:"owner_id"`
	Checked    int           `json:"checked"`
	Downloaded int           `json:"downloaded"`
	Grabbed    int           `json:"grabbed"`
	Missing    int           `json:"missing"`
	Failed     int           `json:"failed"`
	Errors     []ItemError   `json:"errors,omitempty"`
	Duration   time.Duration `json:"duration"`
}

func (r *CheckResult) add(outcome Outcome, err error, id uint64, title string) {
	r.Checked++
	switch outcome {
	case OutcomeDownloaded:
		r.Downloaded++
	case OutcomeGrabbed:
		r.Grabbed++
	case OutcomeMissing:
		r.Missing++
	}
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, ItemError{EntityID: id, Path: title, Reason: err.Error()})
	}
}

// MonitorController runs the per-entity monitoring state machine
type MonitorController struct {
	db       *models.Database
	settings SettingsProvider
	scanner  LibraryScanner
	search   *SearchController
	download *DownloadController
	renamer  *RenameController
	cfg      MonitorConfig
	logger   *logrus.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMonitorController creates a new monitor controller. renamer may be
// nil to disable rename-on-detect.
func NewMonitorController(db *models.Database, settings SettingsProvider, scanner LibraryScanner, search *SearchController, download *DownloadController, renamer *RenameController, cfg MonitorConfig, logger *logrus.Logger) *MonitorController {
	return &MonitorController{
		db:       db,
		settings: settings,
		scanner:  scanner,
		search:   search,
		download: download,
		renamer:  renamer,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *MonitorController) ownerLock(ownerID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[ownerID]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[ownerID] = lock
	}
	return lock
}

// CheckUser checks every movie and series of an owner, one at a time with
// the configured delay in between. Entity failures are collected in the
// result; an error is only returned when the batch could not start.
func (c *MonitorController) CheckUser(ctx context.Context, ownerID string) (*CheckResult, error) {
	lock := c.ownerLock(ownerID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := tracer.Start(ctx, "monitor.CheckUser", trace.WithAttributes(attribute.String("owner_id", ownerID)))
	defer span.End()

	start := time.Now()
	defer metrics.ObserveJob("monitor", start)

	settings, err := c.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	movies, err := c.db.GetMoviesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	series, err := c.db.GetSeriesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"movies":   len(movies),
		"series":   len(series),
	}).Info("Starting monitoring check")

	result := &CheckResult{OwnerID: ownerID}
	first := true
	pause := func() error {
		if first {
			first = false
			return nil
		}
		return utils.Sleep(ctx, c.cfg.EntityDelay)
	}

	for _, movie := range movies {
		if err := pause(); err != nil {
			return result, err
		}
		outcome, err := c.CheckMovie(ctx, settings, movie)
		result.add(outcome, err, movie.ID, movie.Title)
	}
	for _, s := range series {
		if err := pause(); err != nil {
			return result, err
		}
		outcome, err := c.CheckSeries(ctx, settings, s)
		result.add(outcome, err, s.ID, s.Title)
	}

	result.Duration = time.Since(start)
	c.logger.WithFields(logrus.Fields{
		"owner_id":   ownerID,
		"checked":    result.Checked,
		"downloaded": result.Downloaded,
		"grabbed":    result.Grabbed,
		"missing":    result.Missing,
		"failed":     result.Failed,
		"duration":   result.Duration,
	}).Info("Monitoring check completed")
	return result, nil
}

// CheckMovie runs one tick of the state machine for a movie and persists
// it. The returned error describes why the tick did not complete; the
// entity is always saved.
func (c *MonitorController) CheckMovie(ctx context.Context, settings *models.Settings, movie *models.MonitoredMovie) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "monitor.CheckMovie", trace.WithAttributes(attribute.Int64("movie_id", int64(movie.ID))))
	defer span.End()

	outcome, err := c.checkMovie(ctx, settings, movie)
	if saveErr := c.db.UpdateMovie(movie); saveErr != nil {
		c.logger.WithError(saveErr).WithField("movie_id", movie.ID).Error("Failed to update movie")
		if err == nil {
			err = saveErr
		}
	}

	metrics.EntityChecks.WithLabelValues(string(models.MediaKindMovie), string(outcome)).Inc()
	log := c.logger.WithFields(logrus.Fields{
		"owner_id": movie.OwnerID,
		"movie_id": movie.ID,
		"title":    movie.Title,
		"status":   movie.Status,
		"outcome":  outcome,
	})
	if err != nil {
		span.RecordError(err)
		log.WithError(err).Warn("Movie check failed")
	} else {
		log.Debug("Movie checked")
	}
	return outcome, err
}

func (c *MonitorController) checkMovie(ctx context.Context, settings *models.Settings, movie *models.MonitoredMovie) (Outcome, error) {
	now := c.now()
	movie.LastChecked = &now

	if settings.MovieDirectory == "" {
		return OutcomeNoDirectory, fmt.Errorf("movie directory: %w", ErrNoDirectory)
	}

	file, err := c.scanner.FindMovieFile(ctx, settings.MovieDirectory, movie)
	if err != nil {
		// Status is left as is, downloaded in particular never regresses
		// on a failed scan
		movie.LastError = err.Error()
		return OutcomeError, fmt.Errorf("library scan failed: %w", err)
	}

	if file != nil {
		c.recordMovieFile(ctx, settings, movie, file)
		return OutcomeDownloaded, nil
	}

	switch movie.Status {
	case models.StatusDownloaded:
		// A scanner that finds nothing does not undo a confirmed file
		return OutcomeDownloaded, nil
	case models.StatusDownloading:
		if c.downloadExpired(movie.DownloadingFrom, now) {
			c.logger.WithFields(logrus.Fields{
				"movie_id": movie.ID,
				"title":    movie.Title,
			}).Warn("Download timeout detected, searching again on next check")
			movie.Status = models.StatusMonitoring
			movie.DownloadingFrom = nil
			return OutcomeMonitoring, nil
		}
		return OutcomeDownloading, nil
	}

	movie.FileExists = false
	if !settings.AutoDownload {
		movie.Status = models.StatusMissing
		return OutcomeMissing, nil
	}
	if !movie.IsAvailable(now) {
		return OutcomeUnavailable, nil
	}

	candidates, err := c.search.Search(ctx, SearchQuery{
		Query:    movie.SearchQuery(),
		Category: models.CategoryMovies,
		Year:     movie.Year(),
	})
	if err != nil {
		// Transient, retried next tick
		movie.LastError = err.Error()
		return OutcomeError, err
	}

	policy := settings.EffectivePolicy(movie.QualityPolicy)
	best, ok := utils.SelectBest(candidates, policy)
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"movie_id":   movie.ID,
			"candidates": len(candidates),
			"policy":     policy,
		}).Info("No candidate matches quality policy")
		movie.Status = models.StatusMissing
		return OutcomeMissing, nil
	}

	ref := MediaRef{OwnerID: movie.OwnerID, Kind: models.MediaKindMovie, ID: movie.ID}
	if _, err := c.download.Submit(ctx, ref, *best); err != nil {
		movie.Status = models.StatusError
		movie.LastError = err.Error()
		return OutcomeError, err
	}

	movie.Status = models.StatusDownloading
	movie.DownloadingFrom = &now
	movie.ReleaseTitle = best.Title
	movie.LastError = ""
	return OutcomeGrabbed, nil
}

func (c *MonitorController) recordMovieFile(ctx context.Context, settings *models.Settings, movie *models.MonitoredMovie, file *models.FileInfo) {
	movie.Status = models.StatusDownloaded
	movie.FileExists = true
	movie.FilePath = file.Path
	movie.FileName = file.Name
	movie.FileSize = file.Size
	movie.DownloadingFrom = nil
	movie.LastError = ""

	if !settings.AutoRename || c.renamer == nil {
		return
	}
	renamed, err := c.renamer.RenameMovieFile(ctx, settings, movie)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"movie_id": movie.ID,
			"path":     movie.FilePath,
		}).Warn("Auto-rename failed, keeping current name")
		return
	}
	if renamed {
		c.logger.WithFields(logrus.Fields{
			"movie_id": movie.ID,
			"path":     movie.FilePath,
		}).Info("Movie file renamed")
	}
}

func (c *MonitorController) downloadExpired(since *time.Time, now time.Time) bool {
	if c.cfg.DownloadTimeout <= 0 || since == nil {
		return false
	}
	return now.Sub(*since) > c.cfg.DownloadTimeout
}

// CheckSeries runs one tick for every selected episode of a series and
// persists it. The series is downloaded once every selected episode has a
// file, downloading while grabs are outstanding.
func (c *MonitorController) CheckSeries(ctx context.Context, settings *models.Settings, series *models.MonitoredSeries) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "monitor.CheckSeries", trace.WithAttributes(attribute.Int64("series_id", int64(series.ID))))
	defer span.End()

	outcome, err := c.checkSeries(ctx, settings, series)
	if saveErr := c.db.UpdateSeries(series); saveErr != nil {
		c.logger.WithError(saveErr).WithField("series_id", series.ID).Error("Failed to update series")
		if err == nil {
			err = saveErr
		}
	}

	metrics.EntityChecks.WithLabelValues(string(models.MediaKindSeries), string(outcome)).Inc()
	log := c.logger.WithFields(logrus.Fields{
		"owner_id":  series.OwnerID,
		"series_id": series.ID,
		"title":     series.Title,
		"status":    series.Status,
		"outcome":   outcome,
	})
	if err != nil {
		span.RecordError(err)
		log.WithError(err).Warn("Series check failed")
	} else {
		log.Debug("Series checked")
	}
	return outcome, err
}

func (c *MonitorController) checkSeries(ctx context.Context, settings *models.Settings, series *models.MonitoredSeries) (Outcome, error) {
	now := c.now()
	series.LastChecked = &now

	if settings.SeriesDirectory == "" {
		return OutcomeNoDirectory, fmt.Errorf("series directory: %w", ErrNoDirectory)
	}
	if len(series.SelectedEpisodes) == 0 {
		return OutcomeMonitoring, nil
	}

	var (
		grabbed    int
		submitErrs []error
		searchErrs []error
		searched   bool
	)
	for _, key := range series.SelectedEpisodes {
		season, episode, err := models.ParseEpisodeKey(key)
		if err != nil {
			continue
		}

		file, err := c.scanner.FindEpisodeFile(ctx, settings.SeriesDirectory, series, season, episode)
		if err != nil {
			series.LastError = err.Error()
			return OutcomeError, fmt.Errorf("library scan failed: %w", err)
		}
		if file != nil {
			series.RecordEpisodeFile(key, file.Path)
			continue
		}
		if series.HasEpisodeFile(key) {
			continue
		}
		if at, ok := series.GrabbedEpisodes[key]; ok {
			if !c.downloadExpired(&at, now) {
				continue
			}
			delete(series.GrabbedEpisodes, key)
		}
		if !settings.AutoDownload {
			continue
		}

		if searched {
			if err := utils.Sleep(ctx, c.cfg.EntityDelay); err != nil {
				return OutcomeError, err
			}
		}
		searched = true

		ok, err := c.grabEpisode(ctx, settings, series, season, episode)
		if errors.Is(err, errSubmit) {
			submitErrs = append(submitErrs, err)
			continue
		}
		if err != nil {
			searchErrs = append(searchErrs, err)
			continue
		}
		if ok {
			series.MarkGrabbed(key, now)
			grabbed++
		}
	}

	outstanding := 0
	complete := true
	for _, key := range series.SelectedEpisodes {
		if series.HasEpisodeFile(key) {
			continue
		}
		complete = false
		if _, ok := series.GrabbedEpisodes[key]; ok {
			outstanding++
		}
	}

	switch {
	case complete:
		series.Status = models.StatusDownloaded
		series.LastError = ""
		return OutcomeDownloaded, nil
	case len(submitErrs) > 0 && outstanding == 0:
		series.Status = models.StatusError
		series.LastError = errors.Join(submitErrs...).Error()
		return OutcomeError, errors.Join(submitErrs...)
	case outstanding > 0:
		series.Status = models.StatusDownloading
		if len(submitErrs) > 0 {
			series.LastError = errors.Join(submitErrs...).Error()
		}
		if grabbed > 0 {
			return OutcomeGrabbed, nil
		}
		return OutcomeDownloading, nil
	default:
		series.Status = models.StatusMonitoring
		if len(searchErrs) > 0 {
			// Transient, retried next tick
			err := errors.Join(searchErrs...)
			series.LastError = err.Error()
			return OutcomeError, err
		}
		return OutcomeMonitoring, nil
	}
}

// grabEpisode searches for one episode and submits the best candidate.
// ok is false when nothing matched the quality policy.
func (c *MonitorController) grabEpisode(ctx context.Context, settings *models.Settings, series *models.MonitoredSeries, season, episode int) (bool, error) {
	candidates, err := c.search.Search(ctx, SearchQuery{
		Query:    series.SearchQuery(season, episode),
		Category: models.CategoryTV,
	})
	if err != nil {
		return false, fmt.Errorf("S%02dE%02d: %w", season, episode, err)
	}

	// Season packs and other episodes share the query prefix
	matching := candidates[:0]
	for _, candidate := range candidates {
		s, e, ok := utils.ExtractSeasonEpisode(candidate.Title)
		if ok && s == season && e == episode {
			matching = append(matching, candidate)
		}
	}

	best, ok := utils.SelectBest(matching, settings.EffectivePolicy(series.QualityPolicy))
	if !ok {
		c.logger.WithFields(logrus.Fields{
			"series_id":  series.ID,
			"season":     season,
			"episode":    episode,
			"candidates": len(candidates),
		}).Info("No candidate for episode")
		return false, nil
	}

	s, e := season, episode
	ref := MediaRef{OwnerID: series.OwnerID, Kind: models.MediaKindSeries, ID: series.ID, Season: &s, Episode: &e}
	if _, err := c.download.Submit(ctx, ref, *best); err != nil {
		return false, fmt.Errorf("S%02dE%02d: %w: %w", season, episode, errSubmit, err)
	}
	return true, nil
}
