package models

import (
	"time"
)

// MaxCommentLen is the maximum comment content length.
const MaxCommentLen = 1000

// Comment represents a threaded comment on a track. Deleted is a soft flag: a
// comment with surviving replies is marked deleted rather than removed so the
// thread structure stays intact for its descendants. Comments have no gorm
// soft-delete column; hard deletes are real row deletes.
type Comment struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	Content  string  `gorm:"not null" json:"content"`
	UserID   uint    `gorm:"not null;index" json:"user_id"`
	TrackID  uint    `gorm:"not null;index" json:"track_id"`
	ParentID *uint   `gorm:"index" json:"parent_id,omitempty"`
	Deleted  bool    `gorm:"not null;default:false" json:"deleted"`
	User     User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Parent   *Comment `gorm:"foreignKey:ParentID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
