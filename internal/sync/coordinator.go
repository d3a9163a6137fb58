package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/gorm"
)

// Coordinator replicates canonical entities to the primary reader and,
// best-effort, to the secondary reader.
//
// Policy: the primary reader is the authority for remote existence. A failed
// primary create rolls the canonical insert back; a failed secondary call is
// logged and counted but never fails the operation.
type Coordinator struct {
	db        *gorm.DB
	mapper    *Mapper
	primary   *device.Client
	secondary *device.Client // nil when only one reader is configured
}

// NewCoordinator creates a replication coordinator. secondary may be nil.
func NewCoordinator(db *gorm.DB, primary, secondary *device.Client) *Coordinator {
	return &Coordinator{
		db:        db,
		mapper:    NewMapper(db),
		primary:   primary,
		secondary: secondary,
	}
}

// Mapper exposes the entity mapper for the orchestrator and handlers
func (c *Coordinator) Mapper() *Mapper {
	return c.mapper
}

// recordPrimary stores the device-1 mapping and mirrors it into the entity's
// primary_device_id column, which remains the fast read path.
func (c *Coordinator) recordPrimary(entityType string, localID uint, deviceID int64, entity interface{}) error {
	if err := c.mapper.Record(entityType, models.PrimaryDevice, localID, deviceID); err != nil {
		return err
	}
	return c.db.Model(entity).Where("id = ?", localID).
		Update("primary_device_id", deviceID).Error
}

// audit writes one audit row; audit failures are logged, never propagated
func (c *Coordinator) audit(action, entity string, entityID uint, details map[string]interface{}) {
	raw, err := json.Marshal(details)
	if err != nil {
		raw = []byte("{}")
	}
	row := models.AuditLog{
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   raw,
		Timestamp: time.Now(),
	}
	if err := c.db.Create(&row).Error; err != nil {
		log.Printf("⚠️ Failed to write audit log for %s: %v", action, err)
	}
}

// ==================== Time Zones ====================

// CreateTimeZone creates a time zone locally and on both readers.
// The returned error covers canonical-store failures only; device outcomes
// land in the result.
func (c *Coordinator) CreateTimeZone(ctx context.Context, name string, spans []models.TimeSpan) (*models.TimeZone, *EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityTimeZones)
	res.Total = 1

	tz := &models.TimeZone{Name: name}
	if err := c.db.Create(tz).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create time zone %q: %w", name, err)
	}

	// Primary reader is strict: failure rolls the canonical row back
	deviceID, err := c.primary.CreateTimeZone(ctx, device.TimeZoneRecord{Name: name})
	if err != nil {
		if derr := c.db.Delete(&models.TimeZone{}, tz.LocalID).Error; derr != nil {
			log.Printf("🛑 Rollback of time zone %d failed, canonical row is orphaned: %v", tz.LocalID, derr)
		}
		res.addError(fmt.Sprintf("primary device: %v", err))
		return nil, res.finish(start), nil
	}
	if err := c.recordPrimary(models.EntityTimeZones, tz.LocalID, deviceID, &models.TimeZone{}); err != nil {
		return nil, nil, err
	}
	tz.PrimaryDeviceID = &deviceID

	// Sub-records: failures are counted, the parent stands
	for i := range spans {
		if _, err := c.primary.CreateTimeSpan(ctx, spanRecord(spans[i], deviceID)); err != nil {
			log.Printf("⚠️ Time span %d/%d failed on primary reader: %v", i+1, len(spans), err)
			res.addError(fmt.Sprintf("primary time span %d: %v", i+1, err))
		}
		spans[i].TimeZoneID = tz.LocalID
		if err := c.db.Create(&spans[i]).Error; err != nil {
			res.addError(fmt.Sprintf("local time span %d: %v", i+1, err))
		}
	}
	tz.TimeSpans = spans

	// Secondary reader: whole sequence, best effort
	if c.secondary != nil {
		if err := c.replicateTimeZoneTo(ctx, c.secondary, models.SecondaryDevice, tz, spans); err != nil {
			log.Printf("⚠️ Secondary reader: time zone %q not replicated: %v", name, err)
		}
	}

	res.Success = 1
	c.audit("time_zone_created", models.EntityTimeZones, tz.LocalID, map[string]interface{}{
		"name": name, "localId": tz.LocalID, "deviceId": deviceID, "spans": len(spans),
	})
	return tz, res.finish(start), nil
}

// replicateTimeZoneTo pushes a time zone and its spans to one reader and
// records the mapping for that reader's index
func (c *Coordinator) replicateTimeZoneTo(ctx context.Context, cl *device.Client, deviceIndex int, tz *models.TimeZone, spans []models.TimeSpan) error {
	deviceID, err := cl.CreateTimeZone(ctx, device.TimeZoneRecord{Name: tz.Name})
	if err != nil {
		return err
	}
	if err := c.mapper.Record(models.EntityTimeZones, deviceIndex, tz.LocalID, deviceID); err != nil {
		return err
	}
	for i := range spans {
		if _, err := cl.CreateTimeSpan(ctx, spanRecord(spans[i], deviceID)); err != nil {
			log.Printf("⚠️ Reader %d: time span %d failed: %v", deviceIndex, i+1, err)
		}
	}
	return nil
}

// DeleteTimeZone removes a time zone from both readers (ignoring individual
// failures) and then unconditionally from the canonical store
func (c *Coordinator) DeleteTimeZone(ctx context.Context, localID uint) error {
	var tz models.TimeZone
	if err := c.db.First(&tz, localID).Error; err != nil {
		return err
	}

	c.destroyOnBoth(ctx, models.EntityTimeZones, localID, func(cl *device.Client, deviceID int64) error {
		return cl.DestroyTimeZone(ctx, deviceID)
	})

	if err := c.db.Where("time_zone_id = ?", localID).Delete(&models.TimeSpan{}).Error; err != nil {
		return err
	}
	if err := c.db.Delete(&models.TimeZone{}, localID).Error; err != nil {
		return err
	}
	if err := c.mapper.Delete(models.EntityTimeZones, localID); err != nil {
		return err
	}
	c.audit("time_zone_deleted", models.EntityTimeZones, localID, map[string]interface{}{"name": tz.Name})
	return nil
}

// ==================== Access Rules ====================

// CreateAccessRule creates an access rule locally and on both readers, then
// links it to the given time zones (locally always, remotely when the time
// zone is mapped on that reader).
func (c *Coordinator) CreateAccessRule(ctx context.Context, name string, ruleType, priority int, timeZoneLocalIDs []uint) (*models.AccessRule, *EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityAccessRules)
	res.Total = 1

	rule := &models.AccessRule{Name: name, Type: ruleType, Priority: priority}
	if err := c.db.Create(rule).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to create access rule %q: %w", name, err)
	}

	deviceID, err := c.primary.CreateAccessRule(ctx, device.AccessRuleRecord{Name: name, Type: ruleType, Priority: priority})
	if err != nil {
		if derr := c.db.Delete(&models.AccessRule{}, rule.LocalID).Error; derr != nil {
			log.Printf("🛑 Rollback of access rule %d failed, canonical row is orphaned: %v", rule.LocalID, derr)
		}
		res.addError(fmt.Sprintf("primary device: %v", err))
		return nil, res.finish(start), nil
	}
	if err := c.recordPrimary(models.EntityAccessRules, rule.LocalID, deviceID, &models.AccessRule{}); err != nil {
		return nil, nil, err
	}
	rule.PrimaryDeviceID = &deviceID

	for _, tzID := range timeZoneLocalIDs {
		edge := models.AccessRuleTimeZone{AccessRuleID: rule.LocalID, TimeZoneID: tzID}
		if err := c.db.Create(&edge).Error; err != nil {
			res.addError(fmt.Sprintf("link time zone %d: %v", tzID, err))
		}
	}

	if c.secondary != nil {
		if err := c.replicateAccessRuleTo(ctx, c.secondary, models.SecondaryDevice, rule); err != nil {
			log.Printf("⚠️ Secondary reader: access rule %q not replicated: %v", name, err)
		}
	}

	res.Success = 1
	c.audit("access_rule_created", models.EntityAccessRules, rule.LocalID, map[string]interface{}{
		"name": name, "type": ruleType, "priority": priority, "deviceId": deviceID,
	})
	return rule, res.finish(start), nil
}

func (c *Coordinator) replicateAccessRuleTo(ctx context.Context, cl *device.Client, deviceIndex int, rule *models.AccessRule) error {
	deviceID, err := cl.CreateAccessRule(ctx, device.AccessRuleRecord{
		Name: rule.Name, Type: rule.Type, Priority: rule.Priority,
	})
	if err != nil {
		return err
	}
	return c.mapper.Record(models.EntityAccessRules, deviceIndex, rule.LocalID, deviceID)
}

// DeleteAccessRule removes an access rule from both readers and the store
func (c *Coordinator) DeleteAccessRule(ctx context.Context, localID uint) error {
	var rule models.AccessRule
	if err := c.db.First(&rule, localID).Error; err != nil {
		return err
	}

	c.destroyOnBoth(ctx, models.EntityAccessRules, localID, func(cl *device.Client, deviceID int64) error {
		return cl.DestroyAccessRule(ctx, deviceID)
	})

	if err := c.db.Where("access_rule_id = ?", localID).Delete(&models.AccessRuleTimeZone{}).Error; err != nil {
		return err
	}
	if err := c.db.Where("access_rule_id = ?", localID).Delete(&models.UserAccessRule{}).Error; err != nil {
		return err
	}
	if err := c.db.Delete(&models.AccessRule{}, localID).Error; err != nil {
		return err
	}
	if err := c.mapper.Delete(models.EntityAccessRules, localID); err != nil {
		return err
	}
	c.audit("access_rule_deleted", models.EntityAccessRules, localID, map[string]interface{}{"name": rule.Name})
	return nil
}

// OpenDoor triggers the primary reader's relay actions
func (c *Coordinator) OpenDoor(ctx context.Context, actions []device.Action) error {
	if err := c.primary.ExecuteActions(ctx, actions); err != nil {
		return fmt.Errorf("failed to open door: %w", err)
	}
	c.audit("door_opened", models.EntityPortals, 0, map[string]interface{}{"actions": len(actions)})
	return nil
}

// RebootDevice restarts one reader
func (c *Coordinator) RebootDevice(ctx context.Context, deviceIndex int) error {
	cl, err := c.clientFor(deviceIndex)
	if err != nil {
		return err
	}
	if err := cl.Reboot(ctx); err != nil {
		return fmt.Errorf("failed to reboot device %d: %w", deviceIndex, err)
	}
	c.audit("device_rebooted", models.EntityAll, 0, map[string]interface{}{"deviceIndex": deviceIndex})
	return nil
}

// ==================== Shared helpers ====================

// reader pairs a device index with its client
type reader struct {
	index  int
	client *device.Client
}

// readers lists the configured readers, primary first
func (c *Coordinator) readers() []reader {
	out := []reader{{models.PrimaryDevice, c.primary}}
	if c.secondary != nil {
		out = append(out, reader{models.SecondaryDevice, c.secondary})
	}
	return out
}

// destroyOnBoth attempts deletion on every reader an entity is mapped to,
// ignoring individual failures. Drift left behind is picked up by the next
// comparison pass.
func (c *Coordinator) destroyOnBoth(ctx context.Context, entityType string, localID uint, destroy func(cl *device.Client, deviceID int64) error) {
	for _, r := range c.readers() {
		idx, cl := r.index, r.client
		deviceID, ok, err := c.mapper.DeviceID(entityType, idx, localID)
		if err != nil || !ok {
			continue
		}
		if err := destroy(cl, deviceID); err != nil {
			log.Printf("⚠️ Reader %d: delete of %s local id %d failed: %v", idx, entityType, localID, err)
		}
	}
}

// spanRecord converts a canonical time span to the wire form for one reader
func spanRecord(s models.TimeSpan, deviceTimeZoneID int64) device.TimeSpanRecord {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	return device.TimeSpanRecord{
		TimeZoneID: deviceTimeZoneID,
		Start:      s.Start,
		End:        s.End,
		Sun:        b(s.Sun),
		Mon:        b(s.Mon),
		Tue:        b(s.Tue),
		Wed:        b(s.Wed),
		Thu:        b(s.Thu),
		Fri:        b(s.Fri),
		Sat:        b(s.Sat),
		Hol1:       b(s.Hol1),
		Hol2:       b(s.Hol2),
		Hol3:       b(s.Hol3),
	}
}
