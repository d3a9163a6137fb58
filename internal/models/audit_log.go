package models

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records engine mutations and admin actions
type AuditLog struct {
	ID       uint           `gorm:"primaryKey" json:"id"`
	AdminID  *uint          `gorm:"index" json:"adminId,omitempty"`
	Action   string         `gorm:"not null;index" json:"action"`
	Entity   string         `gorm:"index" json:"entity"`
	EntityID uint           `json:"entityId"`
	Details  datatypes.JSON `json:"details,omitempty"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for AuditLog
func (AuditLog) TableName() string {
	return "audit_logs"
}

// Admin is an operator of the management console
type Admin struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"unique;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	Role         string `gorm:"default:'admin'" json:"role"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Admin
func (Admin) TableName() string {
	return "admins"
}
