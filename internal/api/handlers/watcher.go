package handlers

import (
	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WatcherHandler exposes scans and the approval queue
type WatcherHandler struct {
	watcher   *controllers.WatcherController
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
}

// NewWatcherHandler creates a new watcher handler
func NewWatcherHandler(watcher *controllers.WatcherController, sched *scheduler.Scheduler, logger *logrus.Logger) *WatcherHandler {
	return &WatcherHandler{
		watcher:   watcher,
		scheduler: sched,
		logger:    logger,
	}
}

// Scan handles POST /api/:owner/watcher/scan
func (h *WatcherHandler) Scan(c *fiber.Ctx) error {
	result, err := h.scheduler.TriggerScan(c.UserContext(), c.Params("owner"))
	if err != nil && result == nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(result)
}

// Pending handles GET /api/:owner/watcher/pending
func (h *WatcherHandler) Pending(c *fiber.Ctx) error {
	pending, err := h.watcher.PendingFiles(c.Params("owner"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(pending)
}

// Approve handles POST /api/:owner/watcher/pending/:id/approve
func (h *WatcherHandler) Approve(c *fiber.Ctx) error {
	pending, err := h.watcher.Approve(c.UserContext(), c.Params("owner"), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(pending)
}

// Reject handles POST /api/:owner/watcher/pending/:id/reject
func (h *WatcherHandler) Reject(c *fiber.Ctx) error {
	pending, err := h.watcher.Reject(c.UserContext(), c.Params("owner"), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(pending)
}
