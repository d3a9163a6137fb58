package models

import "time"

// Access event kinds, mapped from the reader's numeric event codes
const (
	EventAccessGranted     = "access_granted"
	EventAccessDenied      = "access_denied"
	EventUnknownUser       = "unknown_user"
	EventInvalidCredential = "invalid_credential"
	EventExpiredAccess     = "expired_access"
	EventTimeRestriction   = "time_restriction"
	EventDoorForced        = "door_forced"
	EventDoorLeftOpen      = "door_left_open"
	EventUnknown           = "unknown"
)

// AccessLog is one access event ingested from a reader.
// The unique index on (device_index, device_log_id) is what makes ingestion
// idempotent under overlapping polls; everything else is an optimization.
type AccessLog struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	DeviceIndex int    `gorm:"not null;default:1;uniqueIndex:idx_device_log" json:"deviceIndex"`
	DeviceLogID int64  `gorm:"not null;uniqueIndex:idx_device_log" json:"deviceLogId"`
	UserID      *uint  `gorm:"index" json:"userId,omitempty"`   // nil for unknown-user events
	PortalID    *uint  `gorm:"index" json:"portalId,omitempty"`
	Event       string `gorm:"not null" json:"event"`
	Reason      string `json:"reason,omitempty"`
	CardValue   string `json:"cardValue,omitempty"`

	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for AccessLog
func (AccessLog) TableName() string {
	return "access_logs"
}
