package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a permanent person in the canonical store.
// The store owns the lifecycle; readers only hold replicas.
// Convention: Go PascalCase -> DB snake_case (GORM auto) -> JSON camelCase
type User struct {
	LocalID         uint       `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64     `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string     `gorm:"not null" json:"name"`
	Registration    *string    `gorm:"uniqueIndex" json:"registration,omitempty"`
	Password        string     `json:"-"`
	Salt            string     `json:"-"`
	BeginTime       *time.Time `json:"beginTime,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Image           string     `json:"image,omitempty"` // base64 JPEG/PNG
	ImageTimestamp  *time.Time `json:"imageTimestamp,omitempty"`

	Cards     []Card     `gorm:"constraint:OnDelete:CASCADE" json:"cards,omitempty"`
	QRCodes   []QRCode   `gorm:"constraint:OnDelete:CASCADE" json:"qrcodes,omitempty"`
	Templates []Template `gorm:"constraint:OnDelete:CASCADE" json:"templates,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "users"
}

// Card is a physical proximity card credential
type Card struct {
	ID     uint  `gorm:"primaryKey" json:"id"`
	Value  int64 `gorm:"not null;index" json:"value"`
	UserID uint  `gorm:"not null;index" json:"userId"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for Card
func (Card) TableName() string {
	return "cards"
}

// QRCode is a printable QR credential
type QRCode struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	Value  string `gorm:"not null;index" json:"value"`
	UserID uint   `gorm:"not null;index" json:"userId"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for QRCode
func (QRCode) TableName() string {
	return "qrcodes"
}

// Template is a fingerprint template captured by a reader
type Template struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	FingerType int    `json:"fingerType"`
	Template   string `gorm:"type:text" json:"template"`
	UserID     uint   `gorm:"not null;index" json:"userId"`
}

// TableName specifies the table name for Template
func (Template) TableName() string {
	return "templates"
}
