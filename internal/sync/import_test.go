package sync

import (
	"context"
	"testing"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/device/devicetest"
	"github.com/facegate-io/facegate/internal/models"
)

func TestBulkImportUsersFromDevice(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Ada", "registration": "1001"})
	rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Grace", "registration": "1002"})

	res, err := rig.coordinator.BulkImportUsersFromDevice(ctx, false)
	if err != nil {
		t.Fatalf("BulkImportUsersFromDevice failed: %v", err)
	}
	if res.Total != 2 || res.Success != 2 || res.Skipped != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := countRows(t, rig.db, &models.User{}); n != 2 {
		t.Fatalf("canonical store has %d users, want 2", n)
	}

	var user models.User
	if err := rig.db.Where("name = ?", "Ada").First(&user).Error; err != nil {
		t.Fatalf("imported user missing: %v", err)
	}
	if user.PrimaryDeviceID == nil {
		t.Error("imported user must carry the device id")
	}
	if user.Registration == nil || *user.Registration != "1001" {
		t.Errorf("registration = %v, want 1001", user.Registration)
	}

	// Re-import without overwrite skips everything
	res, err = rig.coordinator.BulkImportUsersFromDevice(ctx, false)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if res.Skipped != 2 || res.Success != 0 {
		t.Errorf("expected 2 skipped on re-import, got %+v", res)
	}
	if n := countRows(t, rig.db, &models.User{}); n != 2 {
		t.Errorf("canonical store has %d users after re-import, want 2", n)
	}
}

func TestBulkImportUsersOverwriteUpdatesInPlace(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Ada", "registration": "1001"})
	if _, err := rig.coordinator.BulkImportUsersFromDevice(ctx, false); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	// The device copy changes; an overwrite import follows it
	rows := rig.primary.Rows(device.ObjectUsers)
	rows[0]["name"] = "Ada L."

	res, err := rig.coordinator.BulkImportUsersFromDevice(ctx, true)
	if err != nil {
		t.Fatalf("overwrite import failed: %v", err)
	}
	if res.Success != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	var user models.User
	if err := rig.db.First(&user).Error; err != nil {
		t.Fatalf("user missing: %v", err)
	}
	if user.Name != "Ada L." {
		t.Errorf("name = %q, want overwritten value", user.Name)
	}
	if n := countRows(t, rig.db, &models.User{}); n != 1 {
		t.Errorf("overwrite must not duplicate rows, got %d", n)
	}
}

func TestSyncPortalsFromDevice(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	mainDoor := rig.primary.AddRow(device.ObjectAreas, devicetest.Row{"name": "Main Door"})
	rig.primary.AddRow(device.ObjectAreas, devicetest.Row{"name": "Back Door"})

	res, err := rig.coordinator.SyncPortalsFromDevice(ctx)
	if err != nil {
		t.Fatalf("SyncPortalsFromDevice failed: %v", err)
	}
	if res.Success != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if n := countRows(t, rig.db, &models.Portal{}); n != 2 {
		t.Fatalf("canonical store has %d portals, want 2", n)
	}

	// Renaming an area on the device updates the portal on the next pass
	rows := rig.primary.Rows(device.ObjectAreas)
	for _, row := range rows {
		if row["id"] == float64(mainDoor) {
			row["name"] = "Main Entrance"
		}
	}
	if _, err := rig.coordinator.SyncPortalsFromDevice(ctx); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	var portal models.Portal
	if err := rig.db.Where("primary_device_id = ?", mainDoor).First(&portal).Error; err != nil {
		t.Fatalf("portal missing: %v", err)
	}
	if portal.Name != "Main Entrance" {
		t.Errorf("portal name = %q, want renamed value", portal.Name)
	}
	if n := countRows(t, rig.db, &models.Portal{}); n != 2 {
		t.Errorf("second pass must not duplicate portals, got %d", n)
	}
}

func TestImportTimeZonesAndRulesFromDevice(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	rig.primary.AddRow(device.ObjectTimeZones, devicetest.Row{"name": "Always"})
	rig.primary.AddRow(device.ObjectAccessRules, devicetest.Row{"name": "Staff", "type": float64(1), "priority": float64(0)})

	tzRes, err := rig.coordinator.ImportTimeZonesFromDevice(ctx)
	if err != nil || tzRes.Success != 1 {
		t.Fatalf("time zone import failed: res=%+v err=%v", tzRes, err)
	}
	ruleRes, err := rig.coordinator.ImportAccessRulesFromDevice(ctx)
	if err != nil || ruleRes.Success != 1 {
		t.Fatalf("access rule import failed: res=%+v err=%v", ruleRes, err)
	}

	// Idempotent: a second pass skips
	tzRes, _ = rig.coordinator.ImportTimeZonesFromDevice(ctx)
	if tzRes.Skipped != 1 || tzRes.Success != 0 {
		t.Errorf("expected skip on re-import, got %+v", tzRes)
	}
}
