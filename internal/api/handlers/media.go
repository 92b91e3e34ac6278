package handlers

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var errInvalidRequest = errors.New("invalid request")

// MediaHandler manages an owner's monitored movies and series. The owner's
// timers follow the library: the first entity schedules them and removing
// the last one stops them.
type MediaHandler struct {
	db        *models.Database
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(db *models.Database, sched *scheduler.Scheduler, logger *logrus.Logger) *MediaHandler {
	return &MediaHandler{
		db:        db,
		scheduler: sched,
		logger:    logger,
	}
}

type movieRequest struct {
	ExternalID          int    `json:"external_id"`
	Title               string `json:"title"`
	ReleaseDate         string `json:"release_date"` // YYYY-MM-DD
	QualityPolicy       string `json:"quality_policy"`
	MinimumAvailability string `json:"minimum_availability"`
}

type seriesRequest struct {
	ExternalID          int      `json:"external_id"`
	Title               string   `json:"title"`
	QualityPolicy       string   `json:"quality_policy"`
	MinimumAvailability string   `json:"minimum_availability"`
	Episodes            []string `json:"episodes"`
}

type episodesRequest struct {
	Episodes []string `json:"episodes"`
}

type selectAllRequest struct {
	Seasons map[int]int `json:"seasons"` // season -> episode count
}

func parsePolicy(name string) models.QualityPolicy {
	if name == "" {
		return ""
	}
	return models.ParseQualityPolicy(name)
}

func parseAvailability(name string) (models.Availability, error) {
	switch a := models.Availability(strings.ToLower(name)); a {
	case "", models.AvailabilityAnnounced, models.AvailabilityReleased:
		return a, nil
	default:
		return "", fmt.Errorf("%w: unknown minimum availability %q", errInvalidRequest, name)
	}
}

func parseEntityID(c *fiber.Ctx) (uint64, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad id %q", errInvalidRequest, c.Params("id"))
	}
	return id, nil
}

// ListMovies handles GET /api/:owner/movies
func (h *MediaHandler) ListMovies(c *fiber.Ctx) error {
	movies, err := h.db.GetMoviesByOwner(c.Params("owner"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(movies)
}

// AddMovie handles POST /api/:owner/movies
func (h *MediaHandler) AddMovie(c *fiber.Ctx) error {
	ownerID := c.Params("owner")

	var req movieRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: invalid payload", errInvalidRequest))
	}
	if req.ExternalID <= 0 || strings.TrimSpace(req.Title) == "" {
		return respondError(c, h.logger, fmt.Errorf("%w: external_id and title are required", errInvalidRequest))
	}
	availability, err := parseAvailability(req.MinimumAvailability)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	movie := &models.MonitoredMovie{
		OwnerID:             ownerID,
		ExternalID:          req.ExternalID,
		Title:               strings.TrimSpace(req.Title),
		QualityPolicy:       parsePolicy(req.QualityPolicy),
		MinimumAvailability: availability,
	}
	if req.ReleaseDate != "" {
		release, err := time.Parse(time.DateOnly, req.ReleaseDate)
		if err != nil {
			return respondError(c, h.logger, fmt.Errorf("%w: release_date must be YYYY-MM-DD", errInvalidRequest))
		}
		movie.ReleaseDate = &release
	}

	if err := h.db.CreateMovie(movie); err != nil {
		return respondError(c, h.logger, err)
	}
	h.ensureScheduled(ownerID)

	h.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"movie_id": movie.ID,
		"title":    movie.Title,
	}).Info("Movie added")
	return c.Status(fiber.StatusCreated).JSON(movie)
}

// DeleteMovie handles DELETE /api/:owner/movies/:id
func (h *MediaHandler) DeleteMovie(c *fiber.Ctx) error {
	ownerID := c.Params("owner")
	id, err := parseEntityID(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	movie, err := h.db.GetMovie(id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if movie.OwnerID != ownerID {
		return respondError(c, h.logger, models.ErrNotFound)
	}
	if err := h.db.DeleteMovie(id); err != nil {
		return respondError(c, h.logger, err)
	}
	h.unscheduleIfEmpty(ownerID)

	h.logger.WithFields(logrus.Fields{
		"owner_id": ownerID,
		"movie_id": id,
	}).Info("Movie removed")
	return c.SendStatus(fiber.StatusNoContent)
}

// ListSeries handles GET /api/:owner/series
func (h *MediaHandler) ListSeries(c *fiber.Ctx) error {
	series, err := h.db.GetSeriesByOwner(c.Params("owner"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(series)
}

// AddSeries handles POST /api/:owner/series
func (h *MediaHandler) AddSeries(c *fiber.Ctx) error {
	ownerID := c.Params("owner")

	var req seriesRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: invalid payload", errInvalidRequest))
	}
	if req.ExternalID <= 0 || strings.TrimSpace(req.Title) == "" {
		return respondError(c, h.logger, fmt.Errorf("%w: external_id and title are required", errInvalidRequest))
	}
	availability, err := parseAvailability(req.MinimumAvailability)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	series := &models.MonitoredSeries{
		OwnerID:             ownerID,
		ExternalID:          req.ExternalID,
		Title:               strings.TrimSpace(req.Title),
		QualityPolicy:       parsePolicy(req.QualityPolicy),
		MinimumAvailability: availability,
	}
	series.SelectEpisodes(req.Episodes)

	if err := h.db.CreateSeries(series); err != nil {
		return respondError(c, h.logger, err)
	}
	h.ensureScheduled(ownerID)

	h.logger.WithFields(logrus.Fields{
		"owner_id":  ownerID,
		"series_id": series.ID,
		"title":     series.Title,
		"episodes":  len(series.SelectedEpisodes),
	}).Info("Series added")
	return c.Status(fiber.StatusCreated).JSON(series)
}

// DeleteSeries handles DELETE /api/:owner/series/:id
func (h *MediaHandler) DeleteSeries(c *fiber.Ctx) error {
	ownerID := c.Params("owner")
	series, err := h.ownedSeries(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.db.DeleteSeries(series.ID); err != nil {
		return respondError(c, h.logger, err)
	}
	h.unscheduleIfEmpty(ownerID)

	h.logger.WithFields(logrus.Fields{
		"owner_id":  ownerID,
		"series_id": series.ID,
	}).Info("Series removed")
	return c.SendStatus(fiber.StatusNoContent)
}

// SelectEpisodes handles PUT /api/:owner/series/:id/episodes
func (h *MediaHandler) SelectEpisodes(c *fiber.Ctx) error {
	var req episodesRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: invalid payload", errInvalidRequest))
	}
	return h.updateSelection(c, func(s *models.MonitoredSeries) { s.SelectEpisodes(req.Episodes) })
}

// SelectAllEpisodes handles POST /api/:owner/series/:id/episodes/select-all
func (h *MediaHandler) SelectAllEpisodes(c *fiber.Ctx) error {
	var req selectAllRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, h.logger, fmt.Errorf("%w: invalid payload", errInvalidRequest))
	}
	if len(req.Seasons) == 0 {
		return respondError(c, h.logger, fmt.Errorf("%w: seasons is required", errInvalidRequest))
	}
	return h.updateSelection(c, func(s *models.MonitoredSeries) { s.SelectAllEpisodes(req.Seasons) })
}

// UnselectAllEpisodes handles POST /api/:owner/series/:id/episodes/unselect-all
func (h *MediaHandler) UnselectAllEpisodes(c *fiber.Ctx) error {
	return h.updateSelection(c, func(s *models.MonitoredSeries) { s.UnselectAllEpisodes() })
}

func (h *MediaHandler) updateSelection(c *fiber.Ctx, apply func(*models.MonitoredSeries)) error {
	series, err := h.ownedSeries(c)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	apply(series)
	if err := h.db.UpdateSeries(series); err != nil {
		return respondError(c, h.logger, err)
	}

	h.logger.WithFields(logrus.Fields{
		"owner_id":  series.OwnerID,
		"series_id": series.ID,
		"episodes":  len(series.SelectedEpisodes),
	}).Info("Episode selection updated")
	return c.JSON(series)
}

// ownedSeries loads the :id series, which must belong to :owner
func (h *MediaHandler) ownedSeries(c *fiber.Ctx) (*models.MonitoredSeries, error) {
	id, err := parseEntityID(c)
	if err != nil {
		return nil, err
	}
	series, err := h.db.GetSeries(id)
	if err != nil {
		return nil, err
	}
	if series.OwnerID != c.Params("owner") {
		return nil, fmt.Errorf("series %d: %w", id, models.ErrNotFound)
	}
	return series, nil
}

func (h *MediaHandler) ensureScheduled(ownerID string) {
	if h.scheduler.Status(ownerID) != nil {
		return
	}
	if err := h.scheduler.UpdateUser(ownerID); err != nil {
		h.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to schedule owner")
	}
}

// unscheduleIfEmpty stops the owner's timers once nothing of theirs is left
func (h *MediaHandler) unscheduleIfEmpty(ownerID string) {
	owners, err := h.db.ListOwners()
	if err != nil {
		h.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to list owners")
		return
	}
	if slices.Contains(owners, ownerID) {
		return
	}
	h.scheduler.RemoveUser(ownerID)
	h.logger.WithField("owner_id", ownerID).Info("Owner unscheduled")
}
