package sync

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/models"
)

// Compare diffs the canonical store against one reader for a single entity
// type. Every mapped entity present on both sides counts as identical; field
// conflicts are reported on top of that count, so OnlyLocal plus Identical
// always covers the whole local set. Compare never mutates either side.
func (c *Coordinator) Compare(ctx context.Context, entityType string, deviceIndex int) (*ComparisonReport, error) {
	cl, err := c.clientFor(deviceIndex)
	if err != nil {
		return nil, err
	}

	switch entityType {
	case models.EntityUsers:
		return c.compareUsers(ctx, cl, deviceIndex)
	case models.EntityAccessRules:
		return c.compareAccessRules(ctx, cl, deviceIndex)
	case models.EntityTimeZones:
		return c.compareTimeZones(ctx, cl, deviceIndex)
	default:
		return nil, fmt.Errorf("comparison is not supported for entity type %q", entityType)
	}
}

// clientFor resolves a reader index to its client
func (c *Coordinator) clientFor(deviceIndex int) (*device.Client, error) {
	switch deviceIndex {
	case models.PrimaryDevice:
		return c.primary, nil
	case models.SecondaryDevice:
		if c.secondary == nil {
			return nil, fmt.Errorf("no secondary device is configured")
		}
		return c.secondary, nil
	default:
		return nil, fmt.Errorf("unknown device index %d", deviceIndex)
	}
}

// mappingsFor loads the local-to-device ID table for one entity type on one
// reader
func (c *Coordinator) mappingsFor(entityType string, deviceIndex int) (map[uint]int64, map[int64]uint, error) {
	var rows []models.EntityMapping
	err := c.db.Where("entity_type = ? AND device_index = ?", entityType, deviceIndex).Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	byLocal := make(map[uint]int64, len(rows))
	byDevice := make(map[int64]uint, len(rows))
	for _, row := range rows {
		byLocal[row.LocalID] = row.DeviceID
		byDevice[row.DeviceID] = row.LocalID
	}
	return byLocal, byDevice, nil
}

func (c *Coordinator) compareUsers(ctx context.Context, cl *device.Client, deviceIndex int) (*ComparisonReport, error) {
	report := &ComparisonReport{EntityType: models.EntityUsers, DeviceIndex: deviceIndex, CheckedAt: time.Now()}

	var locals []models.User
	if err := c.db.Find(&locals).Error; err != nil {
		return nil, err
	}
	remotes, err := cl.LoadUsers(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load users from device %d: %w", deviceIndex, err)
	}
	byLocal, byDevice, err := c.mappingsFor(models.EntityUsers, deviceIndex)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[int64]device.UserRecord, len(remotes))
	for _, r := range remotes {
		remoteByID[r.ID] = r
	}

	for _, local := range locals {
		deviceID, mapped := byLocal[local.LocalID]
		if !mapped {
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}
		remote, present := remoteByID[deviceID]
		if !present {
			// Mapped but gone from the reader: the reader lost it
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}

		report.Identical++

		var fields []string
		if local.Name != remote.Name {
			fields = append(fields, "name")
		}
		localReg := ""
		if local.Registration != nil {
			localReg = *local.Registration
		}
		if localReg != remote.Registration {
			fields = append(fields, "registration")
		}
		if len(fields) == 0 {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			EntityType: models.EntityUsers,
			LocalID:    local.LocalID,
			DeviceID:   deviceID,
			Fields:     fields,
			LocalData:  map[string]interface{}{"name": local.Name, "registration": localReg},
			RemoteData: map[string]interface{}{"name": remote.Name, "registration": remote.Registration},
		})
	}

	for _, remote := range remotes {
		if _, known := byDevice[remote.ID]; !known {
			report.OnlyRemote = append(report.OnlyRemote, remote.ID)
		}
	}
	sortReport(report)
	return report, nil
}

func (c *Coordinator) compareAccessRules(ctx context.Context, cl *device.Client, deviceIndex int) (*ComparisonReport, error) {
	report := &ComparisonReport{EntityType: models.EntityAccessRules, DeviceIndex: deviceIndex, CheckedAt: time.Now()}

	var locals []models.AccessRule
	if err := c.db.Find(&locals).Error; err != nil {
		return nil, err
	}
	remotes, err := cl.LoadAccessRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load access rules from device %d: %w", deviceIndex, err)
	}
	byLocal, byDevice, err := c.mappingsFor(models.EntityAccessRules, deviceIndex)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[int64]device.AccessRuleRecord, len(remotes))
	for _, r := range remotes {
		remoteByID[r.ID] = r
	}

	for _, local := range locals {
		deviceID, mapped := byLocal[local.LocalID]
		if !mapped {
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}
		remote, present := remoteByID[deviceID]
		if !present {
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}

		report.Identical++

		var fields []string
		if local.Name != remote.Name {
			fields = append(fields, "name")
		}
		if local.Type != remote.Type {
			fields = append(fields, "type")
		}
		if local.Priority != remote.Priority {
			fields = append(fields, "priority")
		}
		if len(fields) == 0 {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			EntityType: models.EntityAccessRules,
			LocalID:    local.LocalID,
			DeviceID:   deviceID,
			Fields:     fields,
			LocalData:  map[string]interface{}{"name": local.Name, "type": local.Type, "priority": local.Priority},
			RemoteData: map[string]interface{}{"name": remote.Name, "type": remote.Type, "priority": remote.Priority},
		})
	}

	for _, remote := range remotes {
		if _, known := byDevice[remote.ID]; !known {
			report.OnlyRemote = append(report.OnlyRemote, remote.ID)
		}
	}
	sortReport(report)
	return report, nil
}

func (c *Coordinator) compareTimeZones(ctx context.Context, cl *device.Client, deviceIndex int) (*ComparisonReport, error) {
	report := &ComparisonReport{EntityType: models.EntityTimeZones, DeviceIndex: deviceIndex, CheckedAt: time.Now()}

	var locals []models.TimeZone
	if err := c.db.Find(&locals).Error; err != nil {
		return nil, err
	}
	remotes, err := cl.LoadTimeZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zones from device %d: %w", deviceIndex, err)
	}
	byLocal, byDevice, err := c.mappingsFor(models.EntityTimeZones, deviceIndex)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[int64]device.TimeZoneRecord, len(remotes))
	for _, r := range remotes {
		remoteByID[r.ID] = r
	}

	for _, local := range locals {
		deviceID, mapped := byLocal[local.LocalID]
		if !mapped {
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}
		remote, present := remoteByID[deviceID]
		if !present {
			report.OnlyLocal = append(report.OnlyLocal, local.LocalID)
			continue
		}
		report.Identical++
		if local.Name == remote.Name {
			continue
		}
		report.Conflicts = append(report.Conflicts, Conflict{
			EntityType: models.EntityTimeZones,
			LocalID:    local.LocalID,
			DeviceID:   deviceID,
			Fields:     []string{"name"},
			LocalData:  map[string]interface{}{"name": local.Name},
			RemoteData: map[string]interface{}{"name": remote.Name},
		})
	}

	for _, remote := range remotes {
		if _, known := byDevice[remote.ID]; !known {
			report.OnlyRemote = append(report.OnlyRemote, remote.ID)
		}
	}
	sortReport(report)
	return report, nil
}

// sortReport keeps report ordering stable for tests and API consumers
func sortReport(r *ComparisonReport) {
	sort.Slice(r.OnlyLocal, func(i, j int) bool { return r.OnlyLocal[i] < r.OnlyLocal[j] })
	sort.Slice(r.OnlyRemote, func(i, j int) bool { return r.OnlyRemote[i] < r.OnlyRemote[j] })
	sort.Slice(r.Conflicts, func(i, j int) bool { return r.Conflicts[i].LocalID < r.Conflicts[j].LocalID })
}
