package server

import (
	"strings"

	"modmixx/internal/models"

	"github.com/gofiber/fiber/v2"
)

// parseModerationStatus normalizes a status query/body value. Empty means no
// filter; anything else must be a known status.
func parseModerationStatus(raw string) (models.ModerationStatus, bool) {
	switch models.ModerationStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case "":
		return "", true
	case models.ModerationPending:
		return models.ModerationPending, true
	case models.ModerationApproved:
		return models.ModerationApproved, true
	case models.ModerationRejected:
		return models.ModerationRejected, true
	}
	return "", false
}

// GetModerationQueue handles GET /api/admin/moderation. It lists moderated
// assets by status, defaulting to the pending review queue.
func (s *Server) GetModerationQueue(c *fiber.Ctx) error {
	ctx := c.UserContext()
	page := parsePagination(c, 50)

	raw := c.Query("status", string(models.ModerationPending))
	status, ok := parseModerationStatus(raw)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid moderation status"))
	}

	assets, err := s.moderationService.ListByStatus(ctx, status, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(assets)
}

// RescanAssets handles POST /api/admin/moderation/rescan. It re-runs image
// moderation over stored pictures and artwork, optionally restricted to one
// target or one current status.
func (s *Server) RescanAssets(c *fiber.Ctx) error {
	ctx := c.UserContext()

	var req struct {
		// Target is "profiles", "tracks" or "all" (default).
		Target string `json:"target"`
		// Status restricts the rescan to assets currently in that state.
		Status string `json:"status"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil && len(c.Body()) > 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	status, ok := parseModerationStatus(req.Status)
	if !ok {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid moderation status"))
	}

	target := strings.ToLower(strings.TrimSpace(req.Target))
	if target == "" {
		target = "all"
	}

	result := fiber.Map{}
	if target == "profiles" || target == "all" {
		summary, err := s.moderationService.RescanProfilePictures(ctx, status)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		result["profiles"] = summary
	}
	if target == "tracks" || target == "all" {
		summary, err := s.moderationService.RescanTrackArtwork(ctx, status)
		if err != nil {
			return models.RespondWithError(c, mapServiceError(err), err)
		}
		result["tracks"] = summary
	}
	if len(result) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid rescan target"))
	}

	return c.JSON(result)
}
