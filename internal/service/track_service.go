package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modmixx/internal/cache"
	"modmixx/internal/models"
	"modmixx/internal/repository"
	"modmixx/internal/storage"
	"modmixx/internal/textguard"
	"modmixx/internal/upload"

	"github.com/redis/go-redis/v9"
)

// Object-store prefixes for track files.
const (
	trackAudioPrefix   = "tracks/audio"
	trackArtworkPrefix = "tracks/images"
)

// maxSlugAttempts bounds the numbered-suffix search for a free slug.
const maxSlugAttempts = 100

type TrackService struct {
	trackRepo repository.TrackRepository
	userRepo  repository.UserRepository
	guard     *textguard.Guard
	validator *upload.Validator
	modSvc    *ModerationService
	store     storage.ObjectStore
	cleaner   *storage.Cleaner
	rdb       *redis.Client
	logger    *slog.Logger
}

// TrackResponse is a track as seen by a particular viewer. ArtworkURL is empty
// unless the artwork is approved or the viewer owns the track.
type TrackResponse struct {
	ID               uint                    `json:"id"`
	Title            string                  `json:"title"`
	Slug             string                  `json:"slug"`
	Description      string                  `json:"description"`
	Tags             string                  `json:"tags"`
	Username         string                  `json:"username"`
	DisplayName      string                  `json:"display_name"`
	AudioURL         string                  `json:"audio_url"`
	ArtworkURL       string                  `json:"artwork_url,omitempty"`
	ModerationStatus models.ModerationStatus `json:"moderation_status,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
}

type UploadTrackInput struct {
	UserID      uint
	Title       string
	Description string
	Tags        string
	Audio       upload.NewUpload
	Artwork     upload.FileInput
}

type UpdateTrackInput struct {
	UserID      uint
	Slug        string
	Title       string
	Description string
	Tags        string
	Artwork     upload.FileInput
}

func NewTrackService(
	trackRepo repository.TrackRepository,
	userRepo repository.UserRepository,
	guard *textguard.Guard,
	validator *upload.Validator,
	modSvc *ModerationService,
	store storage.ObjectStore,
	cleaner *storage.Cleaner,
	rdb *redis.Client,
	logger *slog.Logger,
) *TrackService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TrackService{
		trackRepo: trackRepo,
		userRepo:  userRepo,
		guard:     guard,
		validator: validator,
		modSvc:    modSvc,
		store:     store,
		cleaner:   cleaner,
		rdb:       rdb,
		logger:    logger,
	}
}

// Upload validates, moderates and stores a new track. The audio file is
// required; artwork is optional and is the only scanned asset. Blobs are
// stored before the row so a mid-flight failure leaves orphaned blobs (cleaned
// up best-effort) rather than a row pointing at nothing.
func (s *TrackService) Upload(ctx context.Context, in UploadTrackInput) (*TrackResponse, error) {
	errs := models.NewFieldErrors()

	title, err := s.guard.Check(ctx, "title", in.Title, models.MaxTrackTitleLen)
	errs.Add("title", err)
	if title == "" && err == nil {
		errs.Add("title", models.NewValidationError("Title is required"))
	}
	description, err := s.guard.Check(ctx, "description", in.Description, models.MaxTrackDescriptionLen)
	errs.Add("description", err)
	tags, err := s.guard.Check(ctx, "tags", in.Tags, models.MaxTrackTagsLen)
	errs.Add("tags", err)

	audio, err := s.validator.Validate(in.Audio, upload.KindAudio, "track")
	errs.Add("audio_file", err)

	var artwork *upload.ValidatedFile
	if img, ok := in.Artwork.(upload.NewUpload); ok {
		artwork, err = s.validator.Validate(img, upload.KindImage, "artwork")
		errs.Add("image_file", err)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	slug, err := s.generateSlug(ctx, title)
	if err != nil {
		return nil, err
	}

	track := &models.Track{
		Title:       title,
		Slug:        slug,
		Description: description,
		Tags:        tags,
		UserID:      in.UserID,
	}

	audioKey := audio.StorageKey(trackAudioPrefix)
	if err := s.store.Put(ctx, audioKey, audio.Content, audio.ContentType); err != nil {
		return nil, models.NewInternalError(err)
	}
	track.AudioPath = audioKey

	if artwork != nil {
		artworkKey := artwork.StorageKey(trackArtworkPrefix)
		s.modSvc.ScanAndApply(ctx, &track.ModeratedAsset, artwork.Content)
		if err := s.store.Put(ctx, artworkKey, artwork.Content, artwork.ContentType); err != nil {
			s.cleaner.DeleteAll(ctx, audioKey)
			return nil, models.NewInternalError(err)
		}
		track.ImagePath = artworkKey
	}

	if err := s.trackRepo.Create(ctx, track); err != nil {
		s.cleaner.DeleteAll(ctx, track.AudioPath, track.ImagePath)
		return nil, err
	}

	s.invalidateFeed(ctx)
	return s.getResponse(ctx, track.ID, in.UserID)
}

// Update edits a track's text fields and optionally its artwork. Only the
// owner may edit; non-owners get the same not-found as a missing track.
func (s *TrackService) Update(ctx context.Context, in UpdateTrackInput) (*TrackResponse, error) {
	track, err := s.trackRepo.GetBySlug(ctx, in.Slug)
	if err != nil {
		return nil, err
	}
	if track.UserID != in.UserID {
		return nil, models.NewNotFoundError("Track", in.Slug)
	}

	errs := models.NewFieldErrors()

	title, err := s.guard.Check(ctx, "title", in.Title, models.MaxTrackTitleLen)
	errs.Add("title", err)
	if title == "" && err == nil {
		errs.Add("title", models.NewValidationError("Title is required"))
	}
	description, err := s.guard.Check(ctx, "description", in.Description, models.MaxTrackDescriptionLen)
	errs.Add("description", err)
	tags, err := s.guard.Check(ctx, "tags", in.Tags, models.MaxTrackTagsLen)
	errs.Add("tags", err)

	var artwork *upload.ValidatedFile
	if img, ok := in.Artwork.(upload.NewUpload); ok {
		artwork, err = s.validator.Validate(img, upload.KindImage, "artwork")
		errs.Add("image_file", err)
	}

	if errs.HasErrors() {
		return nil, errs
	}

	// The slug is permanent: it is the track's public identity in URLs and a
	// title edit must not break existing links.
	track.Title = title
	track.Description = description
	track.Tags = tags

	prevKey := track.ImagePath
	newKey := ""

	switch in.Artwork.(type) {
	case upload.NewUpload:
		newKey = artwork.StorageKey(trackArtworkPrefix)
		s.modSvc.ScanAndApply(ctx, &track.ModeratedAsset, artwork.Content)
		if err := s.store.Put(ctx, newKey, artwork.Content, artwork.ContentType); err != nil {
			return nil, models.NewInternalError(err)
		}
		track.ImagePath = newKey
	case upload.Remove:
		track.ImagePath = ""
		track.ResetModeration()
	}

	if err := s.trackRepo.Update(ctx, track); err != nil {
		if newKey != "" {
			s.cleaner.DeleteAll(ctx, newKey)
		}
		return nil, err
	}

	switch in.Artwork.(type) {
	case upload.NewUpload:
		s.cleaner.CleanupReplaced(ctx, prevKey, newKey)
	case upload.Remove:
		s.cleaner.DeleteAll(ctx, prevKey)
	}

	s.invalidateFeed(ctx)
	return s.getResponse(ctx, track.ID, in.UserID)
}

// Delete removes a track. The row goes first; blob deletion is best-effort
// afterwards, so a storage hiccup can orphan files but never resurrect the
// track.
func (s *TrackService) Delete(ctx context.Context, userID uint, slug string) error {
	track, err := s.trackRepo.GetBySlug(ctx, slug)
	if err != nil {
		return err
	}
	if track.UserID != userID {
		admin, err := s.isAdmin(ctx, userID)
		if err != nil {
			return err
		}
		if !admin {
			return models.NewNotFoundError("Track", slug)
		}
	}

	if err := s.trackRepo.Delete(ctx, track.ID); err != nil {
		return err
	}

	s.cleaner.DeleteAll(ctx, track.AudioPath, track.ImagePath)
	s.invalidateFeed(ctx)
	return nil
}

// GetBySlug returns one track for display.
func (s *TrackService) GetBySlug(ctx context.Context, slug string, viewerID uint) (*TrackResponse, error) {
	track, err := s.trackRepo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, track, viewerID), nil
}

// cachedTrack is the Redis representation of a feed row. The storage keys are
// excluded from the model's public JSON, so they ride alongside it here.
type cachedTrack struct {
	Track     models.Track `json:"track"`
	AudioPath string       `json:"audio_path"`
	ImagePath string       `json:"image_path"`
}

// Feed returns the newest tracks, paginated. The raw page is viewer
// independent and cached in Redis; per-viewer artwork gating happens after the
// cache.
func (s *TrackService) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*TrackResponse, error) {
	var tracks []models.Track
	var cached []cachedTrack
	if cache.GetFeedPage(ctx, s.rdb, limit, offset, &cached) {
		tracks = make([]models.Track, 0, len(cached))
		for _, c := range cached {
			c.Track.AudioPath = c.AudioPath
			c.Track.ImagePath = c.ImagePath
			tracks = append(tracks, c.Track)
		}
	} else {
		var err error
		tracks, err = s.trackRepo.List(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		page := make([]cachedTrack, 0, len(tracks))
		for _, t := range tracks {
			page = append(page, cachedTrack{Track: t, AudioPath: t.AudioPath, ImagePath: t.ImagePath})
		}
		cache.SetFeedPage(ctx, s.rdb, limit, offset, page)
	}

	resp := make([]*TrackResponse, 0, len(tracks))
	for i := range tracks {
		resp = append(resp, s.buildResponse(ctx, &tracks[i], viewerID))
	}
	return resp, nil
}

// ListByUser returns a user's own tracks, unscoped by artwork status.
func (s *TrackService) ListByUser(ctx context.Context, ownerID, viewerID uint) ([]*TrackResponse, error) {
	tracks, err := s.trackRepo.ListByUser(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	resp := make([]*TrackResponse, 0, len(tracks))
	for i := range tracks {
		resp = append(resp, s.buildResponse(ctx, &tracks[i], viewerID))
	}
	return resp, nil
}

func (s *TrackService) getResponse(ctx context.Context, id uint, viewerID uint) (*TrackResponse, error) {
	track, err := s.trackRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildResponse(ctx, track, viewerID), nil
}

func (s *TrackService) buildResponse(ctx context.Context, track *models.Track, viewerID uint) *TrackResponse {
	resp := &TrackResponse{
		ID:          track.ID,
		Title:       track.Title,
		Slug:        track.Slug,
		Description: track.Description,
		Tags:        track.Tags,
		Username:    track.User.Profile.Username,
		DisplayName: track.User.Profile.DisplayName,
		CreatedAt:   track.CreatedAt,
	}

	owner := viewerID != 0 && viewerID == track.UserID
	if owner {
		resp.ModerationStatus = track.ModerationStatus
	}

	if url, err := s.store.PresignedGetURL(ctx, track.AudioPath, presignExpiry); err != nil {
		s.logger.WarnContext(ctx, "failed to presign audio URL", "track_id", track.ID, "error", err)
	} else {
		resp.AudioURL = url
	}

	if track.ImagePath != "" && (owner || track.ModerationStatus == models.ModerationApproved) {
		if url, err := s.store.PresignedGetURL(ctx, track.ImagePath, presignExpiry); err != nil {
			s.logger.WarnContext(ctx, "failed to presign artwork URL", "track_id", track.ID, "error", err)
		} else {
			resp.ArtworkURL = url
		}
	}
	return resp
}

func (s *TrackService) isAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}

func (s *TrackService) invalidateFeed(ctx context.Context) {
	if s.rdb == nil {
		return
	}
	cache.InvalidateFeed(ctx, s.rdb)
}

// generateSlug derives a URL slug from the title and suffixes a counter until
// it is free. Uniqueness is ultimately enforced by the DB constraint; the
// probe just keeps the common path conflict-free.
func (s *TrackService) generateSlug(ctx context.Context, title string) (string, error) {
	base := slugify(title)
	if base == "" {
		base = "track"
	}

	slug := base
	for i := 2; i <= maxSlugAttempts; i++ {
		exists, err := s.trackRepo.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", models.NewValidationError("Could not find a free slug for this title")
}

// slugify lowercases and reduces a title to hyphen-separated alphanumerics.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
