package models

import (
	"time"

	"gorm.io/gorm"
)

// Text field length limits for profiles.
const (
	MaxUsernameLen    = 30
	MaxDisplayNameLen = 50
	MaxBioLen         = 500
	MaxPronounsLen    = 50
)

// Profile holds a user's public identity and their moderated profile picture.
// A profile is created empty (PENDING, no picture) together with its user.
type Profile struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	UserID      uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Username    string `gorm:"uniqueIndex;not null" json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio"`
	Pronouns    string `json:"pronouns"`

	// PicturePath is the object-store key of the profile picture, empty when
	// no picture is set.
	PicturePath string `json:"-"`

	ModeratedAsset

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
