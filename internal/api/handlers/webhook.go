package handlers

import (
	"errors"

	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/amaumene/reconcilarr/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// WebhookPayload is a progress report from the download client
type WebhookPayload struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// WebhookHandler handles download client callbacks
type WebhookHandler struct {
	downloadCtrl *controllers.DownloadController
	logger       *logrus.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(downloadCtrl *controllers.DownloadController, logger *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		downloadCtrl: downloadCtrl,
		logger:       logger,
	}
}

// Post handles POST /api/webhook/download
func (h *WebhookHandler) Post(c *fiber.Ctx) error {
	var payload WebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		h.logger.WithError(err).Error("Failed to decode webhook payload")
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if payload.ID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id is required"})
	}
	if _, ok := validStatuses[models.HistoryStatus(payload.Status)]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported status"})
	}

	h.logger.WithFields(logrus.Fields{
		"client_id": payload.ID,
		"status":    payload.Status,
	}).Info("Received download webhook")

	err := h.downloadCtrl.HandleProgress(payload.ID, models.HistoryStatus(payload.Status), payload.Reason)
	if errors.Is(err, models.ErrNotFound) {
		// Unknown jobs were not submitted by us
		h.logger.WithField("client_id", payload.ID).Warn("Webhook for unknown download")
		return c.JSON(fiber.Map{"status": "ignored"})
	}
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(fiber.Map{"status": "ok"})
}

var validStatuses = map[models.HistoryStatus]struct{}{
	models.HistoryDownloading: {},
	models.HistoryCompleted:   {},
	models.HistoryFailed:      {},
}
