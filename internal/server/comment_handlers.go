package server

import (
	"strings"

	"modmixx/internal/models"
	"modmixx/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTrackComments handles GET /api/tracks/:slug/comments and returns the
// comment thread tree.
func (s *Server) GetTrackComments(c *fiber.Ctx) error {
	ctx := c.UserContext()
	slug := strings.TrimSpace(c.Params("slug"))

	track, err := s.trackRepo.GetBySlug(ctx, slug)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	thread, err := s.commentService.ListByTrack(ctx, track.ID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(thread)
}

// CreateComment handles POST /api/tracks/:slug/comments
func (s *Server) CreateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)
	slug := strings.TrimSpace(c.Params("slug"))

	var req struct {
		Content  string `json:"content"`
		ParentID *uint  `json:"parent_id"`
		// Website is the spam honeypot; the form renders it invisibly and
		// humans never fill it.
		Website string `json:"website"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	track, err := s.trackRepo.GetBySlug(ctx, slug)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	created, err := s.commentService.Create(ctx, service.CreateCommentInput{
		UserID:   userID,
		TrackID:  track.ID,
		ParentID: req.ParentID,
		Content:  req.Content,
		Website:  req.Website,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if created == nil {
		// Honeypot tripped: nothing was stored, but the response must look
		// like a normal success.
		return c.SendStatus(fiber.StatusCreated)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateComment handles PUT /api/comments/:id (only owner)
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Invalid request body"))
	}

	updated, err := s.commentService.Update(ctx, service.UpdateCommentInput{
		UserID:    userID,
		CommentID: commentID,
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(updated)
}

// DeleteComment handles DELETE /api/comments/:id (owner or admin)
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	ctx := c.UserContext()
	userID := c.Locals("userID").(uint)

	commentID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.commentService.Delete(ctx, userID, commentID); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"message": "Comment deleted"})
}
