package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/facegate-io/facegate/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Orchestrator drives multi-entity synchronization passes on top of the
// coordinator. It owns dependency ordering; the coordinator owns the
// per-entity mechanics.
type Orchestrator struct {
	db          *gorm.DB
	coordinator *Coordinator
}

// NewOrchestrator creates a sync orchestrator
func NewOrchestrator(db *gorm.DB, coordinator *Coordinator) *Orchestrator {
	return &Orchestrator{db: db, coordinator: coordinator}
}

// Coordinator exposes the underlying coordinator for handlers
func (o *Orchestrator) Coordinator() *Coordinator {
	return o.coordinator
}

// SyncEntity synchronizes a single canonical entity in the given direction
func (o *Orchestrator) SyncEntity(ctx context.Context, entityType string, localID uint, direction Direction) (*EntitySyncResult, error) {
	if direction == DirectionFromDevice {
		return nil, fmt.Errorf("single-entity pulls are not supported; use a bulk import")
	}
	switch entityType {
	case models.EntityUsers:
		return o.coordinator.SyncUserToDevices(ctx, localID, SyncUserOptions{SyncImage: true, SyncCards: true, SyncRules: true})
	default:
		return nil, fmt.Errorf("entity type %q cannot be synced individually", entityType)
	}
}

// BulkSyncOptions tune a bulk pass
type BulkSyncOptions struct {
	LocalIDs  []uint // empty means every canonical row
	Overwrite bool   // from-device only: update rows that already exist
	User      SyncUserOptions
}

// BulkSync synchronizes every entity of one type in the given direction
func (o *Orchestrator) BulkSync(ctx context.Context, entityType string, direction Direction, opts BulkSyncOptions) (*EntitySyncResult, error) {
	switch direction {
	case DirectionToDevice:
		if entityType != models.EntityUsers {
			return nil, fmt.Errorf("bulk push is not supported for entity type %q", entityType)
		}
		ids := opts.LocalIDs
		if len(ids) == 0 {
			if err := o.db.Model(&models.User{}).Pluck("id", &ids).Error; err != nil {
				return nil, err
			}
		}
		return o.coordinator.BulkSyncUsersToDevices(ctx, ids, opts.User)

	case DirectionFromDevice:
		switch entityType {
		case models.EntityUsers:
			return o.coordinator.BulkImportUsersFromDevice(ctx, opts.Overwrite)
		case models.EntityTimeZones:
			return o.coordinator.ImportTimeZonesFromDevice(ctx)
		case models.EntityAccessRules:
			return o.coordinator.ImportAccessRulesFromDevice(ctx)
		case models.EntityPortals:
			return o.coordinator.SyncPortalsFromDevice(ctx)
		default:
			return nil, fmt.Errorf("bulk import is not supported for entity type %q", entityType)
		}

	default:
		return nil, fmt.Errorf("unsupported direction %q", direction)
	}
}

// FullSync runs a dependency-ordered pass over every entity type. A failing
// type is recorded and the pass continues; Success reflects the whole run.
// With clearLocal set (from-device only) the canonical tables are emptied
// first so the pass rebuilds the store from the primary reader.
func (o *Orchestrator) FullSync(ctx context.Context, direction Direction, clearLocal bool) (*SyncResponse, error) {
	start := time.Now()
	resp := &SyncResponse{
		OperationID: uuid.New().String(),
		Direction:   direction,
		StartTime:   start,
		Success:     true,
	}
	log.Printf("🔄 Full sync %s started (operation %s)", direction, resp.OperationID)

	if clearLocal {
		if direction != DirectionFromDevice {
			return nil, fmt.Errorf("clearLocal requires a from-device sync")
		}
		if err := o.clearCanonicalTables(); err != nil {
			return nil, fmt.Errorf("failed to clear local tables: %w", err)
		}
	}

	order := []string{models.EntityTimeZones, models.EntityAccessRules, models.EntityPortals, models.EntityUsers}
	for _, entityType := range order {
		if direction == DirectionToDevice && entityType != models.EntityUsers {
			// Push flows for rules and zones happen at create time; a full
			// push only re-pushes users today
			continue
		}
		res, err := o.BulkSync(ctx, entityType, direction, BulkSyncOptions{
			User: SyncUserOptions{SyncImage: true, SyncCards: true, SyncRules: true},
		})
		if err != nil {
			resp.Success = false
			failed := newResult(entityType)
			failed.addError(err.Error())
			resp.Results = append(resp.Results, *failed.finish(start))
			continue
		}
		if res.Status == StatusFailed {
			resp.Success = false
		}
		resp.Results = append(resp.Results, *res)
	}

	resp.EndTime = time.Now()
	resp.Duration = resp.EndTime.Sub(start).Seconds()
	log.Printf("✅ Full sync %s finished in %.2fs (success=%v)", direction, resp.Duration, resp.Success)
	o.coordinator.audit("full_sync", models.EntityAll, 0, map[string]interface{}{
		"operationId": resp.OperationID, "direction": direction, "success": resp.Success,
	})
	return resp, nil
}

// clearCanonicalTables empties the store in child-before-parent order
func (o *Orchestrator) clearCanonicalTables() error {
	tables := []interface{}{
		&models.AccessLog{},
		&models.UserAccessRule{},
		&models.UserGroup{},
		&models.GroupAccessRule{},
		&models.AccessRuleTimeZone{},
		&models.PortalAccessRule{},
		&models.Card{},
		&models.QRCode{},
		&models.Template{},
		&models.TimeSpan{},
		&models.User{},
		&models.Visitor{},
		&models.Group{},
		&models.Portal{},
		&models.AccessRule{},
		&models.TimeZone{},
		&models.EntityMapping{},
	}
	for _, table := range tables {
		if err := o.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(table).Error; err != nil {
			return err
		}
	}
	log.Printf("🧹 Canonical tables cleared before full import")
	return nil
}

// DeviceStatistics summarizes one reader's capacity counters
type DeviceStatistics struct {
	DeviceIndex  int    `json:"deviceIndex"`
	Online       bool   `json:"online"`
	Serial       string `json:"serial,omitempty"`
	Version      string `json:"version,omitempty"`
	MaxUsers     int    `json:"maxUsers,omitempty"`
	CurrentUsers int    `json:"currentUsers,omitempty"`
	CurrentFaces int    `json:"currentFaces,omitempty"`
	CurrentCards int    `json:"currentCards,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Statistics reports local row counts, per-type sync coverage and reader
// capacity
type Statistics struct {
	Local     map[string]int64   `json:"local"`
	Synced    map[string]int64   `json:"synced"`  // rows mapped on the primary reader
	Pending   map[string]int64   `json:"pending"` // rows with no primary mapping
	Devices   []DeviceStatistics `json:"devices"`
	CheckedAt time.Time          `json:"checkedAt"`
}

// Statistics gathers store counts and device capacity. An unreachable reader
// is reported inline, never as a failure of the whole call.
func (o *Orchestrator) Statistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		Local:     map[string]int64{},
		Synced:    map[string]int64{},
		Pending:   map[string]int64{},
		CheckedAt: time.Now(),
	}

	counted := map[string]interface{}{
		models.EntityUsers:       &models.User{},
		models.EntityVisitors:    &models.Visitor{},
		models.EntityAccessRules: &models.AccessRule{},
		models.EntityTimeZones:   &models.TimeZone{},
		models.EntityPortals:     &models.Portal{},
		models.EntityGroups:      &models.Group{},
		models.EntityAccessLogs:  &models.AccessLog{},
	}
	for entityType, model := range counted {
		var total int64
		if err := o.db.Model(model).Count(&total).Error; err != nil {
			return nil, err
		}
		stats.Local[entityType] = total

		if entityType == models.EntityAccessLogs {
			continue // logs are ingested, not pushed
		}
		var mapped int64
		err := o.db.Model(&models.EntityMapping{}).
			Where("entity_type = ? AND device_index = ?", entityType, models.PrimaryDevice).
			Count(&mapped).Error
		if err != nil {
			return nil, err
		}
		stats.Synced[entityType] = mapped
		if pending := total - mapped; pending > 0 {
			stats.Pending[entityType] = pending
		} else {
			stats.Pending[entityType] = 0
		}
	}

	for _, r := range o.coordinator.readers() {
		ds := DeviceStatistics{DeviceIndex: r.index}
		info, err := r.client.GetSystemInfo(ctx)
		if err != nil {
			ds.Error = err.Error()
		} else {
			ds.Online = true
			ds.Serial = info.Serial
			ds.Version = info.Version
			ds.MaxUsers = info.Capacity.MaxUsers
			ds.CurrentUsers = info.Capacity.CurrentUsers
			ds.CurrentFaces = info.Capacity.CurrentFaces
			ds.CurrentCards = info.Capacity.CurrentCards
		}
		stats.Devices = append(stats.Devices, ds)
	}
	return stats, nil
}

// Compare proxies drift detection against the primary reader
func (o *Orchestrator) Compare(ctx context.Context, entityType string) (*ComparisonReport, error) {
	return o.coordinator.Compare(ctx, entityType, models.PrimaryDevice)
}

// CleanupOrphans removes credential rows whose owning user is gone
func (o *Orchestrator) CleanupOrphans() (int64, error) {
	var removed int64

	res := o.db.Where("user_id NOT IN (?)", o.db.Model(&models.User{}).Select("id")).Delete(&models.Card{})
	if res.Error != nil {
		return removed, res.Error
	}
	removed += res.RowsAffected

	res = o.db.Where("user_id NOT IN (?)", o.db.Model(&models.User{}).Select("id")).Delete(&models.QRCode{})
	if res.Error != nil {
		return removed, res.Error
	}
	removed += res.RowsAffected

	res = o.db.Where("user_id NOT IN (?)", o.db.Model(&models.User{}).Select("id")).Delete(&models.Template{})
	if res.Error != nil {
		return removed, res.Error
	}
	removed += res.RowsAffected

	if removed > 0 {
		log.Printf("🧹 Removed %d orphaned credential rows", removed)
	}
	return removed, nil
}
