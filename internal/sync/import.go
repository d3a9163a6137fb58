package sync

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/gorm"
)

// BulkSyncUsersToDevices pushes a batch of canonical users to both readers.
// Each user is pushed independently; the batch never aborts mid-way.
func (c *Coordinator) BulkSyncUsersToDevices(ctx context.Context, localIDs []uint, opts SyncUserOptions) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityUsers)
	res.Total = len(localIDs)

	for _, id := range localIDs {
		one, err := c.SyncUserToDevices(ctx, id, opts)
		if err != nil {
			res.addError(fmt.Sprintf("user %d: %v", id, err))
			continue
		}
		if one.Success > 0 {
			res.Success++
		} else {
			res.Failed += one.Failed
			for _, msg := range one.Errors {
				if len(res.Errors) < maxErrorSamples {
					res.Errors = append(res.Errors, fmt.Sprintf("user %d: %s", id, msg))
				}
			}
		}
	}

	log.Printf("🔄 Bulk user push: %d/%d succeeded in %.2fs", res.Success, res.Total, time.Since(start).Seconds())
	return res.finish(start), nil
}

// BulkImportUsersFromDevice pulls every user row from the primary reader into
// the canonical store. Rows already mapped are skipped, or updated in place
// when overwrite is set. Nothing is written back to the readers.
func (c *Coordinator) BulkImportUsersFromDevice(ctx context.Context, overwrite bool) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityUsers)

	records, err := c.primary.LoadUsers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load users from primary device: %w", err)
	}
	res.Total = len(records)

	for _, rec := range records {
		localID, mapped, err := c.mapper.LocalID(models.EntityUsers, models.PrimaryDevice, rec.ID)
		if err != nil {
			res.addError(fmt.Sprintf("device user %d: %v", rec.ID, err))
			continue
		}

		if mapped {
			if !overwrite {
				res.Skipped++
				continue
			}
			updates := map[string]interface{}{
				"name":         rec.Name,
				"registration": nilIfEmpty(rec.Registration),
				"begin_time":   unixOrNil(rec.BeginTime),
				"end_time":     unixOrNil(rec.EndTime),
			}
			if err := c.db.Model(&models.User{}).Where("id = ?", localID).Updates(updates).Error; err != nil {
				res.addError(fmt.Sprintf("device user %d: %v", rec.ID, err))
				continue
			}
			res.Success++
			continue
		}

		user := models.User{
			Name:            rec.Name,
			Registration:    nilIfEmpty(rec.Registration),
			PrimaryDeviceID: &rec.ID,
			BeginTime:       unixOrNil(rec.BeginTime),
			EndTime:         unixOrNil(rec.EndTime),
		}
		if err := c.db.Create(&user).Error; err != nil {
			res.addError(fmt.Sprintf("device user %d (%s): %v", rec.ID, rec.Name, err))
			continue
		}
		if err := c.mapper.Record(models.EntityUsers, models.PrimaryDevice, user.LocalID, rec.ID); err != nil {
			res.addError(fmt.Sprintf("device user %d: %v", rec.ID, err))
			continue
		}
		res.Success++
	}

	log.Printf("📦 User import: %d created/updated, %d skipped of %d device rows", res.Success, res.Skipped, res.Total)
	c.audit("users_imported", models.EntityUsers, 0, map[string]interface{}{
		"total": res.Total, "imported": res.Success, "skipped": res.Skipped, "overwrite": overwrite,
	})
	return res.finish(start), nil
}

// SyncPortalsFromDevice mirrors the primary reader's area list into the
// portals table. Areas are configured on the device, so the flow here is
// always device-to-store.
func (c *Coordinator) SyncPortalsFromDevice(ctx context.Context) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityPortals)

	areas, err := c.primary.LoadAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load areas from primary device: %w", err)
	}
	res.Total = len(areas)

	created, updated := 0, 0
	for _, area := range areas {
		var portal models.Portal
		err := c.db.Where("primary_device_id = ?", area.ID).First(&portal).Error
		switch {
		case err == nil:
			if portal.Name != area.Name {
				if err := c.db.Model(&portal).Update("name", area.Name).Error; err != nil {
					res.addError(fmt.Sprintf("area %d: %v", area.ID, err))
					continue
				}
				updated++
			} else {
				res.Skipped++
			}
			res.Success++
		case err == gorm.ErrRecordNotFound:
			portal = models.Portal{Name: area.Name, PrimaryDeviceID: &area.ID}
			if err := c.db.Create(&portal).Error; err != nil {
				res.addError(fmt.Sprintf("area %d (%s): %v", area.ID, area.Name, err))
				continue
			}
			if err := c.mapper.Record(models.EntityPortals, models.PrimaryDevice, portal.LocalID, area.ID); err != nil {
				res.addError(fmt.Sprintf("area %d: %v", area.ID, err))
				continue
			}
			created++
			res.Success++
		default:
			res.addError(fmt.Sprintf("area %d: %v", area.ID, err))
		}
	}

	log.Printf("🌐 Portal sync: %d created, %d renamed of %d device areas", created, updated, len(areas))
	return res.finish(start), nil
}

// ImportTimeZonesFromDevice pulls time zones from the primary reader, creating
// canonical rows for any the store does not know yet
func (c *Coordinator) ImportTimeZonesFromDevice(ctx context.Context) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityTimeZones)

	records, err := c.primary.LoadTimeZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zones from primary device: %w", err)
	}
	res.Total = len(records)

	for _, rec := range records {
		_, mapped, err := c.mapper.LocalID(models.EntityTimeZones, models.PrimaryDevice, rec.ID)
		if err != nil {
			res.addError(fmt.Sprintf("device time zone %d: %v", rec.ID, err))
			continue
		}
		if mapped {
			res.Skipped++
			continue
		}
		tz := models.TimeZone{Name: rec.Name, PrimaryDeviceID: &rec.ID}
		if err := c.db.Create(&tz).Error; err != nil {
			res.addError(fmt.Sprintf("device time zone %d (%s): %v", rec.ID, rec.Name, err))
			continue
		}
		if err := c.mapper.Record(models.EntityTimeZones, models.PrimaryDevice, tz.LocalID, rec.ID); err != nil {
			res.addError(fmt.Sprintf("device time zone %d: %v", rec.ID, err))
			continue
		}
		res.Success++
	}
	return res.finish(start), nil
}

// ImportAccessRulesFromDevice pulls access rules from the primary reader,
// creating canonical rows for any the store does not know yet
func (c *Coordinator) ImportAccessRulesFromDevice(ctx context.Context) (*EntitySyncResult, error) {
	start := time.Now()
	res := newResult(models.EntityAccessRules)

	records, err := c.primary.LoadAccessRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load access rules from primary device: %w", err)
	}
	res.Total = len(records)

	for _, rec := range records {
		_, mapped, err := c.mapper.LocalID(models.EntityAccessRules, models.PrimaryDevice, rec.ID)
		if err != nil {
			res.addError(fmt.Sprintf("device access rule %d: %v", rec.ID, err))
			continue
		}
		if mapped {
			res.Skipped++
			continue
		}
		rule := models.AccessRule{Name: rec.Name, Type: rec.Type, Priority: rec.Priority, PrimaryDeviceID: &rec.ID}
		if err := c.db.Create(&rule).Error; err != nil {
			res.addError(fmt.Sprintf("device access rule %d (%s): %v", rec.ID, rec.Name, err))
			continue
		}
		if err := c.mapper.Record(models.EntityAccessRules, models.PrimaryDevice, rule.LocalID, rec.ID); err != nil {
			res.addError(fmt.Sprintf("device access rule %d: %v", rec.ID, err))
			continue
		}
		res.Success++
	}
	return res.finish(start), nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func unixOrNil(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
