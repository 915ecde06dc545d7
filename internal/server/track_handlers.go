package server

import (
	"strings"

	"modmixx/internal/models"
	"modmixx/internal/service"
	"modmixx/internal/upload"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/tracks
func (s *Server) GetFeed(c *fiber.Ctx) error {
	viewerID := c.Locals("userID").(uint)
	page := parsePagination(c, 20)

	tracks, err := s.trackService.Feed(c.UserContext(), viewerID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(tracks)
}

// GetTrack handles GET /api/tracks/:slug
func (s *Server) GetTrack(c *fiber.Ctx) error {
	viewerID := c.Locals("userID").(uint)
	slug := strings.TrimSpace(c.Params("slug"))

	track, err := s.trackService.GetBySlug(c.UserContext(), slug, viewerID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(track)
}

// UploadTrack handles POST /api/tracks. The body is multipart form data with
// a required audio file and optional artwork.
func (s *Server) UploadTrack(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	audioFile, err := c.FormFile("audio")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("An audio file is required"))
	}
	audioContent, err := readFormFile(audioFile)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Unable to read uploaded file"))
	}

	artwork, err := parseFileField(c, "artwork", "remove_artwork")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	created, err := s.trackService.Upload(c.UserContext(), service.UploadTrackInput{
		UserID:      userID,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        c.FormValue("tags"),
		Audio: upload.NewUpload{
			Name:        audioFile.Filename,
			ContentType: audioFile.Header.Get("Content-Type"),
			Content:     audioContent,
		},
		Artwork: artwork,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// UpdateTrack handles PUT /api/tracks/:slug. The audio file and slug are
// permanent; only metadata and artwork can change.
func (s *Server) UpdateTrack(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	slug := strings.TrimSpace(c.Params("slug"))

	artwork, err := parseFileField(c, "artwork", "remove_artwork")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	updated, err := s.trackService.Update(c.UserContext(), service.UpdateTrackInput{
		UserID:      userID,
		Slug:        slug,
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        c.FormValue("tags"),
		Artwork:     artwork,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(updated)
}

// DeleteTrack handles DELETE /api/tracks/:slug
func (s *Server) DeleteTrack(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	slug := strings.TrimSpace(c.Params("slug"))

	if err := s.trackService.Delete(c.UserContext(), userID, slug); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(fiber.Map{"message": "Track deleted"})
}
