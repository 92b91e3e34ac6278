package handlers

import (
	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/scheduler"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// SettingsHandler reads and updates owner settings. Saving reschedules the
// owner's timers.
type SettingsHandler struct {
	settings  *controllers.SettingsCache
	scheduler *scheduler.Scheduler
	logger    *logrus.Logger
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settings *controllers.SettingsCache, sched *scheduler.Scheduler, logger *logrus.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		scheduler: sched,
		logger:    logger,
	}
}

// Get handles GET /api/:owner/settings
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	settings, err := h.settings.Get(c.UserContext(), c.Params("owner"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return c.JSON(settings)
}

// Put handles PUT /api/:owner/settings. Fields absent from the body keep
// their current value.
func (h *SettingsHandler) Put(c *fiber.Ctx) error {
	ownerID := c.Params("owner")

	settings, err := h.settings.Get(c.UserContext(), ownerID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if err := c.BodyParser(settings); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	settings.OwnerID = ownerID
	settings.QualityPolicy = models.ParseQualityPolicy(string(settings.QualityPolicy))

	if err := h.settings.Save(c.UserContext(), settings); err != nil {
		return respondError(c, h.logger, err)
	}
	if err := h.scheduler.UpdateUser(ownerID); err != nil {
		h.logger.WithError(err).WithField("owner_id", ownerID).Error("Failed to reschedule owner")
	}

	h.logger.WithField("owner_id", ownerID).Info("Settings updated")
	return c.JSON(settings)
}
