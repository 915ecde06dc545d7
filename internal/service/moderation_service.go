package service

import (
	"context"
	"log/slog"
	"time"

	"modmixx/internal/models"
	"modmixx/internal/moderation"
	"modmixx/internal/repository"
	"modmixx/internal/storage"
)

// ModerationService owns the moderation state of image assets: it runs scans,
// applies their outcome to the embedded asset state, and drives admin rescans.
type ModerationService struct {
	scanner     moderation.ImageScanner
	store       storage.ObjectStore
	profileRepo repository.ProfileRepository
	trackRepo   repository.TrackRepository
	logger      *slog.Logger
	now         func() time.Time
}

// NewModerationService returns a new ModerationService.
func NewModerationService(
	scanner moderation.ImageScanner,
	store storage.ObjectStore,
	profileRepo repository.ProfileRepository,
	trackRepo repository.TrackRepository,
	logger *slog.Logger,
) *ModerationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModerationService{
		scanner:     scanner,
		store:       store,
		profileRepo: profileRepo,
		trackRepo:   trackRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// ApplyScan transitions an asset's moderation state from a scan result:
//
//	failed scan      -> PENDING, labels nil
//	completed, block -> REJECTED, labels recorded
//	completed, clean -> APPROVED, labels recorded
//
// ModeratedAt records the last attempt, successful or not. A failed scan
// leaves no label record: PENDING with nil labels means "never successfully
// scanned", and a later rescan starts fresh.
func (s *ModerationService) ApplyScan(asset *models.ModeratedAsset, result moderation.ScanResult) {
	now := s.now()
	asset.ModeratedAt = &now

	if result.Failed {
		asset.ModerationStatus = models.ModerationPending
		asset.ModerationLabels = nil
		return
	}

	asset.ModerationLabels = result.Labels
	if result.Allowed {
		asset.ModerationStatus = models.ModerationApproved
	} else {
		asset.ModerationStatus = models.ModerationRejected
	}
}

// ScanAndApply scans image bytes and applies the outcome in one step.
func (s *ModerationService) ScanAndApply(ctx context.Context, asset *models.ModeratedAsset, imageBytes []byte) moderation.ScanResult {
	result := s.scanner.Scan(ctx, imageBytes)
	s.ApplyScan(asset, result)
	return result
}

// RescanSummary reports the outcome of one batch rescan.
type RescanSummary struct {
	Scanned  int `json:"scanned"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// RescanProfilePictures re-runs moderation over stored profile pictures.
// status filters which assets are rescanned; empty means every profile with a
// picture. One broken item never aborts the batch.
func (s *ModerationService) RescanProfilePictures(ctx context.Context, status models.ModerationStatus) (*RescanSummary, error) {
	profiles, err := s.profileRepo.ListWithPictures(ctx, status)
	if err != nil {
		return nil, err
	}

	summary := &RescanSummary{}
	for i := range profiles {
		profile := &profiles[i]
		result, ok := s.rescanAsset(ctx, profile.PicturePath, &profile.ModeratedAsset)
		if !ok {
			summary.Failed++
			continue
		}
		if err := s.profileRepo.Update(ctx, profile); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist rescan result",
				"profile_id", profile.ID, "error", err)
			summary.Failed++
			continue
		}
		s.countOutcome(summary, result)
	}
	return summary, nil
}

// RescanTrackArtwork re-runs moderation over stored track artwork.
func (s *ModerationService) RescanTrackArtwork(ctx context.Context, status models.ModerationStatus) (*RescanSummary, error) {
	tracks, err := s.trackRepo.ListWithArtwork(ctx, status)
	if err != nil {
		return nil, err
	}

	summary := &RescanSummary{}
	for i := range tracks {
		track := &tracks[i]
		result, ok := s.rescanAsset(ctx, track.ImagePath, &track.ModeratedAsset)
		if !ok {
			summary.Failed++
			continue
		}
		if err := s.trackRepo.Update(ctx, track); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist rescan result",
				"track_id", track.ID, "error", err)
			summary.Failed++
			continue
		}
		s.countOutcome(summary, result)
	}
	return summary, nil
}

// rescanAsset fetches the stored image and runs a scan. A fetch failure skips
// the item without touching its state; a scan failure still applies (PENDING).
func (s *ModerationService) rescanAsset(ctx context.Context, key string, asset *models.ModeratedAsset) (moderation.ScanResult, bool) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		s.logger.WarnContext(ctx, "rescan skipped, could not fetch stored image",
			"key", key, "error", err)
		return moderation.ScanResult{}, false
	}
	return s.ScanAndApply(ctx, asset, data), true
}

func (s *ModerationService) countOutcome(summary *RescanSummary, result moderation.ScanResult) {
	summary.Scanned++
	switch {
	case result.Failed:
		summary.Failed++
	case result.Allowed:
		summary.Approved++
	default:
		summary.Rejected++
	}
}

// ListPending returns assets awaiting review for the admin dashboard.
type PendingAssets struct {
	Profiles []models.Profile `json:"profiles"`
	Tracks   []models.Track   `json:"tracks"`
}

// ListByStatus returns moderated assets in a given status for admin review.
func (s *ModerationService) ListByStatus(ctx context.Context, status models.ModerationStatus, limit, offset int) (*PendingAssets, error) {
	profiles, err := s.profileRepo.ListByModerationStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	tracks, err := s.trackRepo.ListByModerationStatus(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	return &PendingAssets{Profiles: profiles, Tracks: tracks}, nil
}
