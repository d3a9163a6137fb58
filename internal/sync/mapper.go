package sync

import (
	"errors"
	"fmt"

	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/gorm"
)

// Mapper persists the association between canonical entity IDs and the IDs
// each reader assigned. Both replicas are tracked independently; the two
// readers do not share an ID space.
type Mapper struct {
	db *gorm.DB
}

// NewMapper creates a mapper over the canonical store
func NewMapper(db *gorm.DB) *Mapper {
	return &Mapper{db: db}
}

// Record upserts one mapping row
func (m *Mapper) Record(entityType string, deviceIndex int, localID uint, deviceID int64) error {
	mapping := models.EntityMapping{
		EntityType:  entityType,
		DeviceIndex: deviceIndex,
		LocalID:     localID,
		DeviceID:    deviceID,
	}
	err := m.db.Where("entity_type = ? AND device_index = ? AND local_id = ?", entityType, deviceIndex, localID).
		Assign(mapping).
		FirstOrCreate(&mapping).Error
	if err != nil {
		return fmt.Errorf("failed to record %s mapping for local id %d: %w", entityType, localID, err)
	}
	return nil
}

// DeviceID resolves the ID a reader assigned to a canonical entity
func (m *Mapper) DeviceID(entityType string, deviceIndex int, localID uint) (int64, bool, error) {
	var mapping models.EntityMapping
	err := m.db.Where("entity_type = ? AND device_index = ? AND local_id = ?", entityType, deviceIndex, localID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return mapping.DeviceID, true, nil
}

// LocalID resolves the canonical entity a reader-assigned ID belongs to
func (m *Mapper) LocalID(entityType string, deviceIndex int, deviceID int64) (uint, bool, error) {
	var mapping models.EntityMapping
	err := m.db.Where("entity_type = ? AND device_index = ? AND device_id = ?", entityType, deviceIndex, deviceID).
		First(&mapping).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return mapping.LocalID, true, nil
}

// Delete removes all mapping rows for one entity. Called only when the
// canonical entity itself is deleted.
func (m *Mapper) Delete(entityType string, localID uint) error {
	return m.db.Where("entity_type = ? AND local_id = ?", entityType, localID).
		Delete(&models.EntityMapping{}).Error
}
