package server

import (
	"io"
	"mime/multipart"
	"strings"

	"modmixx/internal/models"
	"modmixx/internal/service"
	"modmixx/internal/upload"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := s.profileService.GetOwn(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:username
func (s *Server) GetProfile(c *fiber.Ctx) error {
	viewerID := c.Locals("userID").(uint)
	username := strings.TrimSpace(c.Params("username"))

	profile, err := s.profileService.GetByUsername(c.UserContext(), username, viewerID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(profile)
}

// GetProfileTracks handles GET /api/profiles/:username/tracks
func (s *Server) GetProfileTracks(c *fiber.Ctx) error {
	ctx := c.UserContext()
	viewerID := c.Locals("userID").(uint)
	username := strings.TrimSpace(c.Params("username"))

	profile, err := s.profileRepo.GetByUsername(ctx, username)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	tracks, err := s.trackService.ListByUser(ctx, profile.UserID, viewerID)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(tracks)
}

// UpdateMyProfile handles PUT /api/profiles/me. The body is multipart form
// data so text fields and the picture can change in one request.
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	picture, err := parseFileField(c, "picture", "remove_picture")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, err)
	}

	updated, err := s.profileService.Update(c.UserContext(), service.UpdateProfileInput{
		UserID:      userID,
		Username:    c.FormValue("username"),
		DisplayName: c.FormValue("display_name"),
		Bio:         c.FormValue("bio"),
		Pronouns:    c.FormValue("pronouns"),
		Picture:     picture,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(updated)
}

// parseFileField maps one multipart file field onto a FileInput: a present
// file means replace, the remove flag means clear, neither means keep.
func parseFileField(c *fiber.Ctx, field, removeFlag string) (upload.FileInput, error) {
	file, err := c.FormFile(field)
	if err == nil && file != nil {
		content, readErr := readFormFile(file)
		if readErr != nil {
			return nil, models.NewValidationError("Unable to read uploaded file")
		}
		return upload.NewUpload{
			Name:        file.Filename,
			ContentType: file.Header.Get("Content-Type"),
			Content:     content,
		}, nil
	}

	if c.FormValue(removeFlag) == "true" {
		return upload.Remove{}, nil
	}
	return upload.Unchanged{}, nil
}

func readFormFile(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}
