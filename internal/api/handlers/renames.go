package handlers

import (
	"github.com/amaumene/reconcilarr/internal/controllers"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// RenameHandler exposes rename preview and apply
type RenameHandler struct {
	renamer *controllers.RenameController
	logger  *logrus.Logger
}

// NewRenameHandler creates a new rename handler
func NewRenameHandler(renamer *controllers.RenameController, logger *logrus.Logger) *RenameHandler {
	return &RenameHandler{
		renamer: renamer,
		logger:  logger,
	}
}

// ApplyRequest selects which previewed renames to apply. An empty
// selection applies the whole preview.
type ApplyRequest struct {
	controllers.NamingFormats
	Proposals []controllers.RenameProposal `json:"proposals"`
}

// Preview handles GET /api/:owner/renames/preview
func (h *RenameHandler) Preview(c *fiber.Ctx) error {
	formats := controllers.NamingFormats{
		Movie:  c.Query("movie_format"),
		Series: c.Query("series_format"),
	}
	proposals, err := h.renamer.PreviewRenames(c.UserContext(), c.Params("owner"), formats)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if proposals == nil {
		proposals = []controllers.RenameProposal{}
	}
	return c.JSON(proposals)
}

// Apply handles POST /api/:owner/renames/apply. Only proposals that are
// part of a fresh preview are applied.
func (h *RenameHandler) Apply(c *fiber.Ctx) error {
	ownerID := c.Params("owner")

	var req ApplyRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
		}
	}

	current, err := h.renamer.PreviewRenames(c.UserContext(), ownerID, req.NamingFormats)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	selected := current
	if len(req.Proposals) > 0 {
		selected = controllers.FilterProposals(current, req.Proposals)
	}

	result := h.renamer.ApplyRenames(c.UserContext(), ownerID, selected)
	return c.JSON(result)
}
