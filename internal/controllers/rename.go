package controllers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/amaumene/reconcilarr/internal/metrics"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/naming"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// NamingFormats are the templates used for one preview. Empty fields fall
// back to the owner's settings.
type NamingFormats struct {
	Movie  string `json:"movie_format,omitempty"`
	Series string `json:"series_format,omitempty"`
}

// RenameProposal is one file that would be moved by a rename
type RenameProposal struct {
	Kind        models.MediaKind `json:"kind"`
	EntityID    uint64           `json:"entity_id"`
	Season      int              `json:"season,omitempty"`
	Episode     int              `json:"episode,omitempty"`
	CurrentPath string           `json:"current_path"`
	NewPath     string           `json:"new_path"`
}

// RenameResult aggregates an ApplyRenames batch
type RenameResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors,omitempty"`
}

// RenameController matches library files to monitored entities and
// renames them according to the owner's naming formats
type RenameController struct {
	db       *models.Database
	settings SettingsProvider
	logger   *logrus.Logger
}

// NewRenameController creates a new rename controller
func NewRenameController(db *models.Database, settings SettingsProvider, logger *logrus.Logger) *RenameController {
	return &RenameController{
		db:       db,
		settings: settings,
		logger:   logger,
	}
}

// PreviewRenames lists the renames the formats would produce for an owner.
// It does not touch the filesystem, so calling it twice without applying
// returns the same proposals.
func (c *RenameController) PreviewRenames(ctx context.Context, ownerID string, formats NamingFormats) ([]RenameProposal, error) {
	settings, err := c.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if formats.Movie == "" {
		formats.Movie = settings.MovieFormat
	}
	if formats.Series == "" {
		formats.Series = settings.SeriesFormat
	}

	movies, err := c.PreviewMovieRenames(ctx, ownerID, formats.Movie)
	if err != nil {
		return nil, err
	}

	proposals := movies
	if settings.SeriesDirectory != "" {
		series, err := c.PreviewSeriesRenames(ctx, ownerID, settings.SeriesDirectory, formats.Series)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, series...)
	}
	return proposals, nil
}

// PreviewMovieRenames proposes in-place renames for every movie with a
// known file whose rendered name differs from the current one
func (c *RenameController) PreviewMovieRenames(ctx context.Context, ownerID, format string) ([]RenameProposal, error) {
	movies, err := c.db.GetMoviesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}

	tmpl := naming.Parse(format)
	var proposals []RenameProposal
	for _, movie := range movies {
		if movie.FilePath == "" {
			continue
		}
		if _, err := os.Stat(movie.FilePath); err != nil {
			c.logger.WithFields(logrus.Fields{
				"movie_id": movie.ID,
				"path":     movie.FilePath,
			}).Debug("Recorded movie file is gone, skipping")
			continue
		}

		newPath, ok := movieTarget(tmpl, movie)
		if !ok || newPath == movie.FilePath {
			continue
		}
		proposals = append(proposals, RenameProposal{
			Kind:        models.MediaKindMovie,
			EntityID:    movie.ID,
			CurrentPath: movie.FilePath,
			NewPath:     newPath,
		})
	}
	return proposals, nil
}

// movieTarget renders the new path of a movie file, kept next to the
// current one
func movieTarget(tmpl naming.Template, movie *models.MonitoredMovie) (string, bool) {
	current := filepath.Base(movie.FilePath)
	name := tmpl.RenderFileName(naming.Values{
		MovieTitle: movie.Title,
		Year:       movie.Year(),
		Metadata:   utils.ExtractQualityMetadata(current),
	})
	if name == "" {
		return "", false
	}
	return filepath.Join(filepath.Dir(movie.FilePath), name+filepath.Ext(current)), true
}

// PreviewSeriesRenames walks the series root, matches each episode file to
// a monitored series and proposes its rendered path. Files without a
// season/episode marker or a matching series are skipped.
func (c *RenameController) PreviewSeriesRenames(ctx context.Context, ownerID, root, format string) ([]RenameProposal, error) {
	series, err := c.db.GetSeriesByOwner(ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	if len(series) == 0 {
		return nil, nil
	}

	titles := make([]string, len(series))
	for i, s := range series {
		titles[i] = s.Title
	}

	tmpl := naming.Parse(format)
	var proposals []RenameProposal
	err = utils.WalkVideoFiles(root, func(path string, info os.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := info.Name()
		season, episode, ok := utils.ExtractSeasonEpisode(name)
		if !ok {
			return nil
		}

		idx, ok := matchSeries(root, path, titles)
		if !ok {
			closest, dist := utils.ClosestTitle(utils.ExtractSeriesTitleGuess(name), titles)
			c.logger.WithFields(logrus.Fields{
				"path":     path,
				"closest":  closest,
				"distance": dist,
			}).Debug("No monitored series matches file")
			return nil
		}
		match := series[idx]

		rendered := tmpl.Render(naming.Values{
			SeriesTitle: match.Title,
			Season:      season,
			Episode:     episode,
			Metadata:    utils.ExtractQualityMetadata(name),
		})
		if rendered == "" {
			return nil
		}

		var newPath string
		if tmpl.HasFolders() {
			newPath = filepath.Join(root, filepath.FromSlash(rendered)+filepath.Ext(name))
		} else {
			newPath = filepath.Join(filepath.Dir(path), rendered+filepath.Ext(name))
		}
		if newPath == path {
			return nil
		}

		proposals = append(proposals, RenameProposal{
			Kind:        models.MediaKindSeries,
			EntityID:    match.ID,
			Season:      season,
			Episode:     episode,
			CurrentPath: path,
			NewPath:     newPath,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w: %w", root, ErrNoDirectory, err)
	}

	sort.SliceStable(proposals, func(i, j int) bool {
		return proposals[i].CurrentPath < proposals[j].CurrentPath
	})
	return proposals, nil
}

// matchSeries matches an episode file to a series title using its guessed
// title, falling back to the top-level folder under root
func matchSeries(root, path string, titles []string) (int, bool) {
	if idx, ok := utils.FuzzyMatchTitle(utils.ExtractSeriesTitleGuess(filepath.Base(path)), titles); ok {
		return idx, true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return -1, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 {
		return -1, false
	}
	return utils.FuzzyMatchTitle(parts[0], titles)
}

// ApplyRenames performs the proposed moves. A proposal fails when its
// source is gone or its destination exists; failures never stop the
// batch. Successful moves update the owning entity.
func (c *RenameController) ApplyRenames(ctx context.Context, ownerID string, proposals []RenameProposal) *RenameResult {
	result := &RenameResult{}
	for _, p := range proposals {
		if err := ctx.Err(); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Path: p.CurrentPath, EntityID: p.EntityID, Reason: err.Error()})
			continue
		}

		if err := utils.MoveFile(p.CurrentPath, p.NewPath); err != nil {
			metrics.Renames.WithLabelValues(renameOutcome(err)).Inc()
			c.logger.WithError(err).WithFields(logrus.Fields{
				"owner_id": ownerID,
				"from":     p.CurrentPath,
				"to":       p.NewPath,
			}).Warn("Rename failed")
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Path: p.CurrentPath, EntityID: p.EntityID, Reason: err.Error()})
			continue
		}

		metrics.Renames.WithLabelValues("ok").Inc()
		result.Succeeded++
		c.logger.WithFields(logrus.Fields{
			"owner_id": ownerID,
			"from":     p.CurrentPath,
			"to":       p.NewPath,
		}).Info("File renamed")

		if err := c.updateEntity(ownerID, p); err != nil {
			c.logger.WithError(err).WithField("entity_id", p.EntityID).Error("Failed to record renamed file")
		}
	}
	return result
}

func renameOutcome(err error) string {
	switch {
	case errors.Is(err, utils.ErrDestinationExists):
		return "collision"
	case errors.Is(err, utils.ErrSourceMissing):
		return "missing"
	default:
		return "error"
	}
}

func (c *RenameController) updateEntity(ownerID string, p RenameProposal) error {
	if p.EntityID == 0 {
		return nil
	}

	switch p.Kind {
	case models.MediaKindMovie:
		movie, err := c.db.GetMovie(p.EntityID)
		if err != nil {
			return err
		}
		if movie.OwnerID != ownerID {
			return nil
		}
		movie.FilePath = p.NewPath
		movie.FileName = filepath.Base(p.NewPath)
		return c.db.UpdateMovie(movie)
	case models.MediaKindSeries:
		series, err := c.db.GetSeries(p.EntityID)
		if err != nil {
			return err
		}
		if series.OwnerID != ownerID {
			return nil
		}
		series.RecordEpisodeFile(models.EpisodeKey(p.Season, p.Episode), p.NewPath)
		return c.db.UpdateSeries(series)
	}
	return nil
}

// RunAutoRename previews and applies renames with the owner's saved
// formats. It returns ErrAutoRenameDisabled when auto-rename is off.
func (c *RenameController) RunAutoRename(ctx context.Context, ownerID string) (*RenameResult, error) {
	settings, err := c.settings.Get(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if !settings.AutoRename {
		return nil, ErrAutoRenameDisabled
	}

	proposals, err := c.PreviewRenames(ctx, ownerID, NamingFormats{})
	if err != nil {
		return nil, err
	}
	result := c.ApplyRenames(ctx, ownerID, proposals)

	c.logger.WithFields(logrus.Fields{
		"owner_id":  ownerID,
		"proposed":  len(proposals),
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("Auto-rename completed")
	return result, nil
}

// RenameMovieFile renames a movie's recorded file in place with the
// owner's movie format and updates the movie (without saving it). It
// reports whether a rename happened.
func (c *RenameController) RenameMovieFile(ctx context.Context, settings *models.Settings, movie *models.MonitoredMovie) (bool, error) {
	if movie.FilePath == "" || settings.MovieFormat == "" {
		return false, nil
	}
	newPath, ok := movieTarget(naming.Parse(settings.MovieFormat), movie)
	if !ok || newPath == movie.FilePath {
		return false, nil
	}

	if err := utils.MoveFile(movie.FilePath, newPath); err != nil {
		metrics.Renames.WithLabelValues(renameOutcome(err)).Inc()
		return false, err
	}
	metrics.Renames.WithLabelValues("ok").Inc()
	movie.FilePath = newPath
	movie.FileName = filepath.Base(newPath)
	return true, nil
}

// FilterProposals keeps the requested proposals that are also part of the
// current preview, so callers can only apply renames the engine computed
func FilterProposals(current, requested []RenameProposal) []RenameProposal {
	allowed := make(map[[2]string]RenameProposal, len(current))
	for _, p := range current {
		allowed[[2]string{p.CurrentPath, p.NewPath}] = p
	}
	var kept []RenameProposal
	for _, p := range requested {
		if match, ok := allowed[[2]string{p.CurrentPath, p.NewPath}]; ok {
			kept = append(kept, match)
		}
	}
	return kept
}
