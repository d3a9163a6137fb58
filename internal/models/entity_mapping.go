package models

import "time"

// Entity type names shared by the mapping table, the sync engine and the
// HTTP surface
const (
	EntityUsers       = "users"
	EntityVisitors    = "visitors"
	EntityAccessRules = "access_rules"
	EntityTimeZones   = "time_zones"
	EntityPortals     = "portals"
	EntityGroups      = "groups"
	EntityCards       = "cards"
	EntityAccessLogs  = "access_logs"
	EntityAll         = "all"
)

// Reader indexes for the fixed two-replica topology
const (
	PrimaryDevice   = 1
	SecondaryDevice = 2
)

// EntityMapping associates a canonical entity with the ID a specific reader
// assigned it. Device 1 and device 2 use unrelated ID spaces, so every
// replica gets its own row. Rows are only removed when the entity is deleted.
type EntityMapping struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	EntityType  string `gorm:"not null;uniqueIndex:idx_entity_device_local" json:"entityType"`
	DeviceIndex int    `gorm:"not null;uniqueIndex:idx_entity_device_local" json:"deviceIndex"`
	LocalID     uint   `gorm:"not null;uniqueIndex:idx_entity_device_local" json:"localId"`
	DeviceID    int64  `gorm:"not null;index" json:"deviceId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for EntityMapping
func (EntityMapping) TableName() string {
	return "entity_mappings"
}
