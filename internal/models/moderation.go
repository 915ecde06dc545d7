package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ModerationStatus is the lifecycle state of a moderatable image asset.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "PENDING"
	ModerationApproved ModerationStatus = "APPROVED"
	ModerationRejected ModerationStatus = "REJECTED"
)

// ModerationLabel is one detected classification label with its confidence.
type ModerationLabel struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// ModerationLabels is the ordered label list from the last completed scan.
// It is nil when the asset was never scanned or the last scan attempt failed;
// status must be PENDING in that case.
type ModerationLabels []ModerationLabel

// Value serializes labels to JSON for storage.
func (l ModerationLabels) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// Scan deserializes labels from their JSON column representation.
func (l *ModerationLabels) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported moderation labels column type %T", value)
	}
	return json.Unmarshal(data, l)
}

// ModeratedAsset is embedded in every owner of a moderatable image (profile
// picture, track artwork). Status reflects the most recent completed scan, or
// PENDING when the file was never scanned or the last attempt failed.
type ModeratedAsset struct {
	ModerationStatus ModerationStatus `gorm:"type:varchar(9);not null;default:'PENDING'" json:"moderation_status"`
	ModerationLabels ModerationLabels `gorm:"type:jsonb" json:"moderation_labels,omitempty"`
	// ModeratedAt is the time of the last moderation attempt, including
	// attempts that failed; nil only when the file was never scanned.
	ModeratedAt *time.Time `json:"moderated_at,omitempty"`
}

// ResetModeration returns the asset to its never-scanned state. Used when the
// underlying file is removed.
func (a *ModeratedAsset) ResetModeration() {
	a.ModerationStatus = ModerationPending
	a.ModerationLabels = nil
	a.ModeratedAt = nil
}
