package repository

import (
	"context"
	"errors"

	"modmixx/internal/models"

	"gorm.io/gorm"
)

// TrackRepository defines persistence operations for tracks.
type TrackRepository interface {
	Create(ctx context.Context, track *models.Track) error
	GetByID(ctx context.Context, id uint) (*models.Track, error)
	GetBySlug(ctx context.Context, slug string) (*models.Track, error)
	Update(ctx context.Context, track *models.Track) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, limit, offset int) ([]models.Track, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Track, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// ListWithArtwork returns every track that has artwork, optionally
	// filtered by moderation status (empty status means all).
	ListWithArtwork(ctx context.Context, status models.ModerationStatus) ([]models.Track, error)
	ListByModerationStatus(ctx context.Context, status models.ModerationStatus, limit, offset int) ([]models.Track, error)
}

type trackRepository struct {
	db *gorm.DB
}

// NewTrackRepository returns a new TrackRepository implementation.
func NewTrackRepository(db *gorm.DB) TrackRepository {
	return &trackRepository{db: db}
}

func (r *trackRepository) Create(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Create(track).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewValidationError("A track with this slug already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *trackRepository) GetByID(ctx context.Context, id uint) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Preload("User.Profile").First(&track, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Track", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &track, nil
}

func (r *trackRepository) GetBySlug(ctx context.Context, slug string) (*models.Track, error) {
	var track models.Track
	if err := r.db.WithContext(ctx).Preload("User.Profile").Where("slug = ?", slug).First(&track).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Track", slug)
		}
		return nil, models.NewInternalError(err)
	}
	return &track, nil
}

func (r *trackRepository) Update(ctx context.Context, track *models.Track) error {
	if err := r.db.WithContext(ctx).Save(track).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *trackRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Track{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *trackRepository) List(ctx context.Context, limit, offset int) ([]models.Track, error) {
	var tracks []models.Track
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	err := r.db.WithContext(ctx).
		Preload("User.Profile").
		Order("created_at desc").
		Limit(limit).Offset(offset).
		Find(&tracks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tracks, nil
}

func (r *trackRepository) ListByUser(ctx context.Context, userID uint) ([]models.Track, error) {
	var tracks []models.Track
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&tracks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tracks, nil
}

func (r *trackRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Track{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *trackRepository) ListWithArtwork(ctx context.Context, status models.ModerationStatus) ([]models.Track, error) {
	var tracks []models.Track
	q := r.db.WithContext(ctx).Where("image_path <> ''")
	if status != "" {
		q = q.Where("moderation_status = ?", status)
	}
	if err := q.Order("id").Find(&tracks).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tracks, nil
}

func (r *trackRepository) ListByModerationStatus(ctx context.Context, status models.ModerationStatus, limit, offset int) ([]models.Track, error) {
	var tracks []models.Track
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	err := r.db.WithContext(ctx).
		Where("moderation_status = ? AND image_path <> ''", status).
		Order("updated_at desc").
		Limit(limit).Offset(offset).
		Find(&tracks).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return tracks, nil
}
