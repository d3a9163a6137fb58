package sync

import (
	"context"
	"testing"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/device/devicetest"
	"github.com/facegate-io/facegate/internal/models"
)

func TestCompareUsersClassifiesDrift(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// Identical on both sides
	sameID := rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Ada", "registration": "1001"})
	reg := "1001"
	same := models.User{Name: "Ada", Registration: &reg, PrimaryDeviceID: &sameID}
	if err := rig.db.Create(&same).Error; err != nil {
		t.Fatal(err)
	}
	mustRecord(t, rig.coordinator, models.EntityUsers, same.LocalID, sameID)

	// Conflicting name, same ID
	confID := rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "G. Hopper", "registration": "1002"})
	reg2 := "1002"
	conflicting := models.User{Name: "Grace", Registration: &reg2, PrimaryDeviceID: &confID}
	if err := rig.db.Create(&conflicting).Error; err != nil {
		t.Fatal(err)
	}
	mustRecord(t, rig.coordinator, models.EntityUsers, conflicting.LocalID, confID)

	// Local only: never pushed
	localOnly := models.User{Name: "Edsger"}
	if err := rig.db.Create(&localOnly).Error; err != nil {
		t.Fatal(err)
	}

	// Remote only: created directly on the reader
	remoteOnly := rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Intruder", "registration": ""})

	report, err := rig.coordinator.Compare(ctx, models.EntityUsers, models.PrimaryDevice)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	// Both mapped-and-present users count as identical; the name conflict is
	// reported on top, not instead
	if report.Identical != 2 {
		t.Errorf("identical = %d, want 2", report.Identical)
	}
	if len(report.OnlyLocal) != 1 || report.OnlyLocal[0] != localOnly.LocalID {
		t.Errorf("onlyLocal = %v, want [%d]", report.OnlyLocal, localOnly.LocalID)
	}
	if len(report.OnlyRemote) != 1 || report.OnlyRemote[0] != remoteOnly {
		t.Errorf("onlyRemote = %v, want [%d]", report.OnlyRemote, remoteOnly)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(report.Conflicts))
	}
	conflict := report.Conflicts[0]
	if conflict.LocalID != conflicting.LocalID || conflict.DeviceID != confID {
		t.Errorf("conflict ids wrong: %+v", conflict)
	}
	if len(conflict.Fields) != 1 || conflict.Fields[0] != "name" {
		t.Errorf("conflict fields = %v, want [name]", conflict.Fields)
	}
	if conflict.LocalData["name"] != "Grace" || conflict.RemoteData["name"] != "G. Hopper" {
		t.Errorf("conflict data wrong: %+v", conflict)
	}
}

func TestCompareIsSymmetricUnderRoleSwap(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	// One side holds a row the other lacks; swapping perspectives swaps the
	// only-local and only-remote sets
	local := models.User{Name: "Ada"}
	if err := rig.db.Create(&local).Error; err != nil {
		t.Fatal(err)
	}
	remote := rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "Grace", "registration": ""})

	report, err := rig.coordinator.Compare(ctx, models.EntityUsers, models.PrimaryDevice)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(report.OnlyLocal) != 1 || len(report.OnlyRemote) != 1 {
		t.Fatalf("expected 1/1 split, got %v / %v", report.OnlyLocal, report.OnlyRemote)
	}
	if report.OnlyLocal[0] != local.LocalID || report.OnlyRemote[0] != remote {
		t.Errorf("wrong membership: %v / %v", report.OnlyLocal, report.OnlyRemote)
	}
	if report.Identical != 0 || len(report.Conflicts) != 0 {
		t.Errorf("expected no overlap, got identical=%d conflicts=%d", report.Identical, len(report.Conflicts))
	}
}

func TestCompareAccessRulesDetectsFieldConflicts(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	id := rig.primary.AddRow(device.ObjectAccessRules, devicetest.Row{
		"name": "Staff", "type": float64(1), "priority": float64(5),
	})
	rule := models.AccessRule{Name: "Staff", Type: 1, Priority: 0, PrimaryDeviceID: &id}
	if err := rig.db.Create(&rule).Error; err != nil {
		t.Fatal(err)
	}
	mustRecord(t, rig.coordinator, models.EntityAccessRules, rule.LocalID, id)

	report, err := rig.coordinator.Compare(ctx, models.EntityAccessRules, models.PrimaryDevice)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(report.Conflicts) != 1 {
		t.Fatalf("conflicts = %d, want 1", len(report.Conflicts))
	}
	if len(report.Conflicts[0].Fields) != 1 || report.Conflicts[0].Fields[0] != "priority" {
		t.Errorf("fields = %v, want [priority]", report.Conflicts[0].Fields)
	}
	if report.Identical != 1 {
		t.Errorf("identical = %d, want 1", report.Identical)
	}
}

func TestCompareCoversEveryLocalEntity(t *testing.T) {
	rig := newTestRig(t)

	// A single mapped user whose name drifted must still land in the identical
	// count, so only-local plus identical equals the local set size
	deviceID := rig.primary.AddRow(device.ObjectUsers, devicetest.Row{"name": "G. Hopper", "registration": ""})
	user := models.User{Name: "Grace", PrimaryDeviceID: &deviceID}
	if err := rig.db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	mustRecord(t, rig.coordinator, models.EntityUsers, user.LocalID, deviceID)

	report, err := rig.coordinator.Compare(context.Background(), models.EntityUsers, models.PrimaryDevice)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if report.Identical != 1 {
		t.Errorf("identical = %d, want 1", report.Identical)
	}
	if len(report.OnlyLocal) != 0 {
		t.Errorf("onlyLocal = %v, want empty", report.OnlyLocal)
	}
	if len(report.Conflicts) != 1 {
		t.Errorf("conflicts = %d, want 1", len(report.Conflicts))
	}
	if covered := len(report.OnlyLocal) + report.Identical; covered != 1 {
		t.Errorf("onlyLocal+identical = %d, want the full local set of 1", covered)
	}
}

func TestCompareMappedButMissingRemoteCountsAsLocal(t *testing.T) {
	rig := newTestRig(t)

	// Mapped once, but the reader since lost the row (factory reset)
	user := models.User{Name: "Ada"}
	if err := rig.db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	mustRecord(t, rig.coordinator, models.EntityUsers, user.LocalID, 555)

	report, err := rig.coordinator.Compare(context.Background(), models.EntityUsers, models.PrimaryDevice)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(report.OnlyLocal) != 1 || report.OnlyLocal[0] != user.LocalID {
		t.Errorf("onlyLocal = %v, want [%d]", report.OnlyLocal, user.LocalID)
	}
}

func TestCompareUnsupportedEntityType(t *testing.T) {
	rig := newTestRig(t)
	if _, err := rig.coordinator.Compare(context.Background(), models.EntityCards, models.PrimaryDevice); err == nil {
		t.Fatal("expected error for unsupported entity type")
	}
}

func mustRecord(t *testing.T, c *Coordinator, entityType string, localID uint, deviceID int64) {
	t.Helper()
	if err := c.Mapper().Record(entityType, models.PrimaryDevice, localID, deviceID); err != nil {
		t.Fatalf("failed to record mapping: %v", err)
	}
}
