package sync

import (
	"context"
	"testing"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/device/devicetest"
	"github.com/facegate-io/facegate/internal/models"
)

func newTestOrchestrator(t *testing.T) (*testRig, *Orchestrator) {
	t.Helper()
	rig := newTestRig(t)
	return rig, NewOrchestrator(rig.db, rig.coordinator)
}

func TestFullSyncFromDeviceRunsInDependencyOrder(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	ctx := context.Background()

	rig.primary.AddRow(device.ObjectTimeZones, devicetest.Row{"name": "Always"})
	rig.primary.AddRow(device.ObjectAccessRules, devicetest.Row{"name": "Staff", "type": float64(1), "priority": float64(0)})
	rig.primary.AddRow(device.ObjectAreas, devicetest.Row{"name": "Main Door"})
	rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Ada", "registration": "1001"})

	resp, err := orch.FullSync(ctx, DirectionFromDevice, false)
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if resp.OperationID == "" {
		t.Error("expected an operation id")
	}

	wantOrder := []string{models.EntityTimeZones, models.EntityAccessRules, models.EntityPortals, models.EntityUsers}
	if len(resp.Results) != len(wantOrder) {
		t.Fatalf("results = %d, want %d", len(resp.Results), len(wantOrder))
	}
	for i, want := range wantOrder {
		if resp.Results[i].EntityType != want {
			t.Errorf("result %d is %q, want %q", i, resp.Results[i].EntityType, want)
		}
	}

	if n := countRows(t, rig.db, &models.TimeZone{}); n != 1 {
		t.Errorf("time zones = %d, want 1", n)
	}
	if n := countRows(t, rig.db, &models.User{}); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	if n := countRows(t, rig.db, &models.Portal{}); n != 1 {
		t.Errorf("portals = %d, want 1", n)
	}
}

func TestFullSyncClearLocalRebuildsStore(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	ctx := context.Background()

	// Stale local data that must disappear
	if err := rig.db.Create(&models.User{Name: "Stale"}).Error; err != nil {
		t.Fatal(err)
	}
	rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Ada", "registration": "1001"})

	resp, err := orch.FullSync(ctx, DirectionFromDevice, true)
	if err != nil {
		t.Fatalf("FullSync failed: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}

	var users []models.User
	if err := rig.db.Find(&users).Error; err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].Name != "Ada" {
		t.Errorf("store not rebuilt from device: %+v", users)
	}
}

func TestFullSyncClearLocalRequiresFromDevice(t *testing.T) {
	_, orch := newTestOrchestrator(t)
	if _, err := orch.FullSync(context.Background(), DirectionToDevice, true); err == nil {
		t.Fatal("expected error for clearLocal on a to-device sync")
	}
}

func TestFullSyncContinuesPastFailingType(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	rig.primary.FailEndpoints["modify_objects.fcgi"] = true
	rig.primary.FailEndpoints["create_objects.fcgi"] = true

	if err := rig.db.Create(&models.User{Name: "Grace"}).Error; err != nil {
		t.Fatal(err)
	}
	resp, err := orch.FullSync(context.Background(), DirectionToDevice, false)
	if err != nil {
		t.Fatalf("FullSync must not return an error for device failures: %v", err)
	}
	if resp.Success {
		t.Error("expected success=false when a type fails")
	}
	if len(resp.Results) == 0 {
		t.Fatal("expected results despite failures")
	}
}

func TestBulkSyncRejectsUnsupportedCombos(t *testing.T) {
	_, orch := newTestOrchestrator(t)
	ctx := context.Background()

	if _, err := orch.BulkSync(ctx, models.EntityTimeZones, DirectionToDevice, BulkSyncOptions{}); err == nil {
		t.Error("expected error for bulk push of time zones")
	}
	if _, err := orch.BulkSync(ctx, models.EntityCards, DirectionFromDevice, BulkSyncOptions{}); err == nil {
		t.Error("expected error for bulk import of cards")
	}
	if _, err := orch.BulkSync(ctx, models.EntityUsers, DirectionBidirectional, BulkSyncOptions{}); err == nil {
		t.Error("expected error for bidirectional bulk sync")
	}
}

func TestBulkSyncUsersBoundsErrorSamples(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		if err := rig.db.Create(&models.User{Name: "U", Registration: nil}).Error; err != nil {
			t.Fatal(err)
		}
	}
	rig.primary.FailEndpoints["create_objects.fcgi"] = true

	res, err := orch.BulkSync(ctx, models.EntityUsers, DirectionToDevice, BulkSyncOptions{})
	if err != nil {
		t.Fatalf("BulkSync failed: %v", err)
	}
	if res.Total != 15 {
		t.Errorf("total = %d, want 15", res.Total)
	}
	if res.Failed != 15 {
		t.Errorf("failed = %d, want 15", res.Failed)
	}
	if len(res.Errors) > 10 {
		t.Errorf("error samples = %d, want at most 10", len(res.Errors))
	}
	if res.Status != StatusFailed {
		t.Errorf("status = %q, want failed", res.Status)
	}
}

func TestStatisticsCountsAndCapacity(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	ctx := context.Background()

	if _, _, err := rig.coordinator.CreateTimeZone(ctx, "Always", nil); err != nil {
		t.Fatal(err)
	}
	if err := rig.db.Create(&models.User{Name: "Pending"}).Error; err != nil {
		t.Fatal(err)
	}

	stats, err := orch.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Local[models.EntityTimeZones] != 1 {
		t.Errorf("local time zones = %d, want 1", stats.Local[models.EntityTimeZones])
	}
	if stats.Synced[models.EntityTimeZones] != 1 {
		t.Errorf("synced time zones = %d, want 1", stats.Synced[models.EntityTimeZones])
	}
	if stats.Pending[models.EntityUsers] != 1 {
		t.Errorf("pending users = %d, want 1", stats.Pending[models.EntityUsers])
	}
	if len(stats.Devices) != 2 {
		t.Fatalf("devices = %d, want 2", len(stats.Devices))
	}
	if !stats.Devices[0].Online || stats.Devices[0].MaxUsers != 10000 {
		t.Errorf("primary device stats wrong: %+v", stats.Devices[0])
	}
}

func TestStatisticsSurvivesUnreachableReader(t *testing.T) {
	rig, orch := newTestOrchestrator(t)
	rig.secondary.FailEndpoints["system_information.fcgi"] = true

	stats, err := orch.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics must not fail on an unreachable reader: %v", err)
	}
	if stats.Devices[1].Online || stats.Devices[1].Error == "" {
		t.Errorf("secondary should report its error: %+v", stats.Devices[1])
	}
}

func TestCleanupOrphans(t *testing.T) {
	rig, orch := newTestOrchestrator(t)

	user := models.User{Name: "Ada"}
	if err := rig.db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	if err := rig.db.Create(&models.Card{Value: 1, UserID: user.LocalID}).Error; err != nil {
		t.Fatal(err)
	}
	// Orphans pointing at a user id that does not exist
	if err := rig.db.Create(&models.Card{Value: 2, UserID: 9999}).Error; err != nil {
		t.Fatal(err)
	}
	if err := rig.db.Create(&models.QRCode{Value: "QR", UserID: 9999}).Error; err != nil {
		t.Fatal(err)
	}

	removed, err := orch.CleanupOrphans()
	if err != nil {
		t.Fatalf("CleanupOrphans failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if n := countRows(t, rig.db, &models.Card{}); n != 1 {
		t.Errorf("cards = %d, want 1 surviving", n)
	}
}
