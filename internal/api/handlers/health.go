package handlers

import (
	"errors"

	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/amaumene/reconcilarr/internal/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{logger: logger}
}

// Get handles the health check endpoint
func (h *HealthHandler) Get(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}

// errorStatus maps the error taxonomy onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, controllers.ErrPendingNotFound), errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, utils.ErrDestinationExists), errors.Is(err, models.ErrDuplicate):
		return fiber.StatusConflict
	case errors.Is(err, utils.ErrSourceMissing):
		return fiber.StatusGone
	case errors.Is(err, controllers.ErrNoDirectory), errors.Is(err, controllers.ErrAutoRenameDisabled),
		errors.Is(err, errInvalidRequest):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, logger *logrus.Logger, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.Path()).Error("Request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
