package service

import (
	"context"
	"log/slog"
	"time"

	"modmixx/internal/models"
	"modmixx/internal/repository"
	"modmixx/internal/storage"
	"modmixx/internal/textguard"
	"modmixx/internal/upload"
)

// profilePicturePrefix is the object-store prefix for profile pictures.
const profilePicturePrefix = "profiles/pictures"

// presignExpiry bounds how long a generated media URL stays valid.
const presignExpiry = time.Hour

type ProfileService struct {
	profileRepo repository.ProfileRepository
	guard       *textguard.Guard
	validator   *upload.Validator
	modSvc      *ModerationService
	store       storage.ObjectStore
	cleaner     *storage.Cleaner
	logger      *slog.Logger
}

// ProfileResponse is a profile as seen by a particular viewer. PictureURL is
// empty unless the picture is approved or the viewer owns the profile.
type ProfileResponse struct {
	Username         string                  `json:"username"`
	DisplayName      string                  `json:"display_name"`
	Bio              string                  `json:"bio"`
	Pronouns         string                  `json:"pronouns"`
	PictureURL       string                  `json:"picture_url,omitempty"`
	ModerationStatus models.ModerationStatus `json:"moderation_status,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

type UpdateProfileInput struct {
	UserID      uint
	Username    string
	DisplayName string
	Bio         string
	Pronouns    string
	Picture     upload.FileInput
}

func NewProfileService(
	profileRepo repository.ProfileRepository,
	guard *textguard.Guard,
	validator *upload.Validator,
	modSvc *ModerationService,
	store storage.ObjectStore,
	cleaner *storage.Cleaner,
	logger *slog.Logger,
) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		profileRepo: profileRepo,
		guard:       guard,
		validator:   validator,
		modSvc:      modSvc,
		store:       store,
		cleaner:     cleaner,
		logger:      logger,
	}
}

// GetByUsername returns a profile for display. viewerID controls whether an
// unapproved picture URL is exposed.
func (s *ProfileService) GetByUsername(ctx context.Context, username string, viewerID uint) (*ProfileResponse, error) {
	profile, err := s.profileRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, profile, viewerID), nil
}

// GetOwn returns the authenticated user's own profile.
func (s *ProfileService) GetOwn(ctx context.Context, userID uint) (*ProfileResponse, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, profile, userID), nil
}

// Update replaces the profile's text fields and optionally its picture. The
// update is all-or-nothing for text: every bad field is reported at once.
//
// Picture replacement ordering matters: the new blob is stored before the row
// is persisted, and the old blob is deleted only after persistence succeeds.
// A failure between those steps can orphan a blob but never dangle a row
// pointing at a missing file.
func (s *ProfileService) Update(ctx context.Context, in UpdateProfileInput) (*ProfileResponse, error) {
	profile, err := s.profileRepo.GetByUserID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	errs := models.NewFieldErrors()

	username, err := s.guard.CheckUsername(ctx, in.Username, models.MaxUsernameLen)
	errs.Add("username", err)
	displayName, err := s.guard.Check(ctx, "display name", in.DisplayName, models.MaxDisplayNameLen)
	errs.Add("display_name", err)
	bio, err := s.guard.Check(ctx, "bio", in.Bio, models.MaxBioLen)
	errs.Add("bio", err)
	pronouns, err := s.guard.Check(ctx, "pronouns", in.Pronouns, models.MaxPronounsLen)
	errs.Add("pronouns", err)

	var validated *upload.ValidatedFile
	if picture, ok := in.Picture.(upload.NewUpload); ok {
		validated, err = s.validator.Validate(picture, upload.KindImage, "profile")
		errs.Add("picture", err)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	profile.Username = username
	profile.DisplayName = displayName
	profile.Bio = bio
	profile.Pronouns = pronouns

	prevKey := profile.PicturePath
	newKey := ""

	switch in.Picture.(type) {
	case upload.NewUpload:
		newKey = validated.StorageKey(profilePicturePrefix)
		s.modSvc.ScanAndApply(ctx, &profile.ModeratedAsset, validated.Content)
		if err := s.store.Put(ctx, newKey, validated.Content, validated.ContentType); err != nil {
			return nil, models.NewInternalError(err)
		}
		profile.PicturePath = newKey
	case upload.Remove:
		profile.PicturePath = ""
		profile.ResetModeration()
	}

	if err := s.profileRepo.Update(ctx, profile); err != nil {
		if newKey != "" {
			s.cleaner.DeleteAll(ctx, newKey)
		}
		return nil, err
	}

	switch in.Picture.(type) {
	case upload.NewUpload:
		s.cleaner.CleanupReplaced(ctx, prevKey, newKey)
	case upload.Remove:
		s.cleaner.DeleteAll(ctx, prevKey)
	}

	return s.buildResponse(ctx, profile, in.UserID), nil
}

func (s *ProfileService) buildResponse(ctx context.Context, profile *models.Profile, viewerID uint) *ProfileResponse {
	resp := &ProfileResponse{
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		Bio:         profile.Bio,
		Pronouns:    profile.Pronouns,
		CreatedAt:   profile.CreatedAt,
	}

	owner := viewerID != 0 && viewerID == profile.UserID
	if owner {
		resp.ModerationStatus = profile.ModerationStatus
	}

	if profile.PicturePath != "" && (owner || profile.ModerationStatus == models.ModerationApproved) {
		url, err := s.store.PresignedGetURL(ctx, profile.PicturePath, presignExpiry)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to presign picture URL",
				"profile_id", profile.ID, "error", err)
		} else {
			resp.PictureURL = url
		}
	}
	return resp
}
