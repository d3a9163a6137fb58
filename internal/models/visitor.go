package models

import (
	"time"

	"gorm.io/gorm"
)

// Visitor is a temporary person. Visitors are replicated to readers as
// device users carrying a begin/end validity window and are purged from
// both replicas when revoked.
type Visitor struct {
	LocalID         uint       `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64     `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string     `gorm:"not null" json:"name"`
	Document        *string    `gorm:"uniqueIndex" json:"document,omitempty"`
	Host            string     `json:"host,omitempty"` // who is being visited
	Image           string     `json:"image,omitempty"`
	BeginTime       *time.Time `json:"beginTime,omitempty"`
	ExpiresAt       *time.Time `gorm:"index" json:"expiresAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Visitor
func (Visitor) TableName() string {
	return "visitors"
}
