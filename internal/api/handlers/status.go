package handlers

import (
	"context"
	"time"

	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles the per-owner read surface and manual checks
type StatusHandler struct {
	db        *models.Database
	scheduler *scheduler.Scheduler
	watcher   *controllers.WatcherController
	logger    *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, sched *scheduler.Scheduler, watcher *controllers.WatcherController, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:        db,
		scheduler: sched,
		watcher:   watcher,
		logger:    logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	OwnerID        string                     `json:"owner_id"`
	TotalMovies    int                        `json:"total_movies"`
	TotalSeries    int                        `json:"total_series"`
	MoviesByStatus map[models.Status]int      `json:"movies_by_status"`
	SeriesByStatus map[models.Status]int      `json:"series_by_status"`
	Schedule       *scheduler.UserSchedule    `json:"schedule,omitempty"`
	Watcher        *controllers.WatcherStatus `json:"watcher,omitempty"`
}

// Get handles GET /api/:owner/status
func (h *StatusHandler) Get(c *fiber.Ctx) error {
	ownerID := c.Params("owner")

	movies, err := h.db.GetMoviesByOwner(ownerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	series, err := h.db.GetSeriesByOwner(ownerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	response := StatusResponse{
		OwnerID:        ownerID,
		TotalMovies:    len(movies),
		TotalSeries:    len(series),
		MoviesByStatus: make(map[models.Status]int),
		SeriesByStatus: make(map[models.Status]int),
		Schedule:       h.scheduler.Status(ownerID),
	}
	for _, movie := range movies {
		response.MoviesByStatus[movie.Status]++
	}
	for _, s := range series {
		response.SeriesByStatus[s.Status]++
	}

	watcher, err := h.watcher.Status(ownerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	response.Watcher = watcher

	return c.JSON(response)
}

// Check handles POST /api/:owner/check. The check runs in the background
// since it paces external calls.
func (h *StatusHandler) Check(c *fiber.Ctx) error {
	ownerID := c.Params("owner")
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		if _, err := h.scheduler.TriggerCheck(ctx, ownerID); err != nil {
			h.logger.WithError(err).WithField("owner_id", ownerID).Error("Manual check failed")
		}
	}()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "started"})
}
