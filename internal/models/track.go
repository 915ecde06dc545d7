package models

import (
	"time"

	"gorm.io/gorm"
)

// Text field length limits for tracks.
const (
	MaxTrackTitleLen       = 200
	MaxTrackDescriptionLen = 1000
	MaxTrackTagsLen        = 200
)

// Track represents an uploaded music track. The artwork image (ImagePath) is a
// moderated asset; the audio file itself is validated but not scanned.
type Track struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Title       string `gorm:"not null" json:"title"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Description string `json:"description"`
	Tags        string `json:"tags"`

	// AudioPath and ImagePath are object-store keys. AudioPath is always set;
	// ImagePath is empty when the track has no artwork.
	AudioPath string `gorm:"not null" json:"-"`
	ImagePath string `json:"-"`

	ModeratedAsset

	UserID   uint      `gorm:"not null;index" json:"user_id"`
	User     User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Comments []Comment `gorm:"foreignKey:TrackID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
