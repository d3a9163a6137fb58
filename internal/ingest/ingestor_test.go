package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/device/devicetest"
	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:ingesttest%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.User{}, &models.Portal{}, &models.EntityMapping{}, &models.AccessLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

type recordingHub struct {
	events []string
}

func (h *recordingHub) Broadcast(event string, payload interface{}) {
	h.events = append(h.events, event)
}

func newTestIngestor(t *testing.T) (*Ingestor, *devicetest.FakeReader, *gorm.DB, *recordingHub) {
	t.Helper()
	db := newTestDB(t)
	fake := devicetest.New()
	t.Cleanup(fake.Close)
	hub := &recordingHub{}
	return NewIngestor(db, device.NewClient(fake.Config()), hub), fake, db, hub
}

// addLog seeds one device log with the given offset from now
func addLog(fake *devicetest.FakeReader, offset time.Duration, event int) int64 {
	return fake.AddRow(device.ObjectAccessLogs, devicetest.Row{
		"time":      float64(time.Now().Add(offset).Unix()),
		"event":     float64(event),
		"user_id":   float64(0),
		"portal_id": float64(0),
	})
}

func TestPollBaselineThenIngests(t *testing.T) {
	ingestor, fake, db, _ := newTestIngestor(t)
	ctx := context.Background()

	// Historical logs that must never be replayed
	addLog(fake, -time.Hour, 0)
	addLog(fake, -time.Minute, 1)

	// First poll with no cursor establishes a baseline and returns nothing
	res, err := ingestor.Poll(ctx, 0)
	if err != nil {
		t.Fatalf("baseline poll failed: %v", err)
	}
	if res.NewCount != 0 || len(res.Logs) != 0 {
		t.Fatalf("baseline poll must ingest nothing, got %+v", res)
	}

	// Three new events arrive after the baseline
	addLog(fake, time.Minute, 0)
	addLog(fake, 2*time.Minute, 1)
	addLog(fake, 3*time.Minute, 7)

	res, err = ingestor.Poll(ctx, res.Cursor)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if res.NewCount != 3 {
		t.Fatalf("new = %d, want 3", res.NewCount)
	}
	if res.Cursor == 0 {
		t.Error("cursor must advance past ingested logs")
	}

	var rows []models.AccessLog
	if err := db.Order("id").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("store has %d logs, want 3", len(rows))
	}
	if rows[0].Event != models.EventAccessGranted || rows[1].Event != models.EventAccessDenied || rows[2].Event != models.EventDoorLeftOpen {
		t.Errorf("event kinds wrong: %s %s %s", rows[0].Event, rows[1].Event, rows[2].Event)
	}

	// A third poll with the returned cursor finds nothing new
	res, err = ingestor.Poll(ctx, res.Cursor)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if res.NewCount != 0 {
		t.Errorf("expected no new logs, got %d", res.NewCount)
	}
}

func TestPollIsIdempotentUnderOverlap(t *testing.T) {
	ingestor, fake, db, _ := newTestIngestor(t)
	ctx := context.Background()

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	addLog(fake, time.Minute, 0)
	base, err := ingestor.Poll(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if base.NewCount != 1 {
		t.Fatalf("setup poll new = %d, want 1", base.NewCount)
	}
	logID := addLog(fake, 2*time.Minute, 0)

	// Two overlapping polls with the same stale cursor
	first, err := ingestor.Poll(ctx, base.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ingestor.Poll(ctx, base.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if first.NewCount != 1 {
		t.Errorf("first poll new = %d, want 1", first.NewCount)
	}
	if second.NewCount != 0 {
		t.Errorf("overlapping poll must dedup, got %d new", second.NewCount)
	}

	var n int64
	db.Model(&models.AccessLog{}).Where("device_log_id = ?", logID).Count(&n)
	if n != 1 {
		t.Fatalf("device log %d ingested %d times, want 1", logID, n)
	}
}

func TestPollKeepsLogsSharingTheCursorSecond(t *testing.T) {
	ingestor, fake, db, _ := newTestIngestor(t)
	ctx := context.Background()

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}

	// Two events land in the exact same second, the second one only after the
	// first was already polled
	second := float64(time.Now().Add(time.Minute).Unix())
	fake.AddRow(device.ObjectAccessLogs, devicetest.Row{"time": second, "event": float64(0), "user_id": float64(0), "portal_id": float64(0)})

	first, err := ingestor.Poll(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if first.NewCount != 1 {
		t.Fatalf("setup poll new = %d, want 1", first.NewCount)
	}

	fake.AddRow(device.ObjectAccessLogs, devicetest.Row{"time": second, "event": float64(1), "user_id": float64(0), "portal_id": float64(0)})

	res, err := ingestor.Poll(ctx, first.Cursor)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewCount != 1 {
		t.Errorf("same-second poll new = %d, want 1", res.NewCount)
	}
	var n int64
	db.Model(&models.AccessLog{}).Count(&n)
	if n != 2 {
		t.Fatalf("store has %d logs, want 2: same-second log was lost", n)
	}
}

func TestPollMapsUnknownEventCodes(t *testing.T) {
	ingestor, fake, db, _ := newTestIngestor(t)
	ctx := context.Background()

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	addLog(fake, time.Minute, 42)

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	var row models.AccessLog
	if err := db.First(&row).Error; err != nil {
		t.Fatal(err)
	}
	if row.Event != models.EventUnknown {
		t.Errorf("event = %q, want %q", row.Event, models.EventUnknown)
	}
}

func TestPollResolvesUserAndPortalNames(t *testing.T) {
	ingestor, fake, db, _ := newTestIngestor(t)
	ctx := context.Background()

	user := models.User{Name: "Ada"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.EntityMapping{
		EntityType: models.EntityUsers, DeviceIndex: models.PrimaryDevice,
		LocalID: user.LocalID, DeviceID: 777,
	}).Error; err != nil {
		t.Fatal(err)
	}
	portalDeviceID := int64(888)
	portal := models.Portal{Name: "Main Door", PrimaryDeviceID: &portalDeviceID}
	if err := db.Create(&portal).Error; err != nil {
		t.Fatal(err)
	}

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	fake.AddRow(device.ObjectAccessLogs, devicetest.Row{
		"time":      float64(time.Now().Add(time.Minute).Unix()),
		"event":     float64(0),
		"user_id":   float64(777),
		"portal_id": float64(888),
	})

	res, err := ingestor.Poll(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.NewCount != 1 {
		t.Fatalf("new = %d, want 1", res.NewCount)
	}
	entry := res.Logs[0]
	if entry.UserName != "Ada" || entry.PortalName != "Main Door" {
		t.Errorf("names not resolved: %+v", entry)
	}
	if entry.UserID == nil || *entry.UserID != user.LocalID {
		t.Errorf("user id not resolved: %+v", entry.UserID)
	}
	if entry.PortalID == nil || *entry.PortalID != portal.LocalID {
		t.Errorf("portal id not resolved: %+v", entry.PortalID)
	}
}

func TestPollBroadcastsIngestedLogs(t *testing.T) {
	ingestor, fake, _, hub := newTestIngestor(t)
	ctx := context.Background()

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	addLog(fake, time.Minute, 0)
	addLog(fake, 2*time.Minute, 1)

	if _, err := ingestor.Poll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if len(hub.events) != 2 {
		t.Fatalf("broadcasts = %d, want 2", len(hub.events))
	}
	if hub.events[0] != "access_log" {
		t.Errorf("event type = %q, want access_log", hub.events[0])
	}
}

func TestCheckAlarmStatus(t *testing.T) {
	ingestor, fake, _, _ := newTestIngestor(t)
	fake.AlarmActive = true
	fake.AlarmCause = 3

	report, err := ingestor.CheckAlarmStatus(context.Background())
	if err != nil {
		t.Fatalf("CheckAlarmStatus failed: %v", err)
	}
	if !report.Active || report.Cause != 3 {
		t.Errorf("report = %+v", report)
	}
	if report.CheckedAt.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestRecentActivityWindow(t *testing.T) {
	ingestor, _, db, _ := newTestIngestor(t)

	old := models.AccessLog{DeviceIndex: 1, DeviceLogID: 1, Event: models.EventAccessGranted, Timestamp: time.Now().Add(-2 * time.Hour)}
	recent := models.AccessLog{DeviceIndex: 1, DeviceLogID: 2, Event: models.EventAccessDenied, Timestamp: time.Now().Add(-5 * time.Minute)}
	if err := db.Create(&old).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&recent).Error; err != nil {
		t.Fatal(err)
	}

	logs, err := ingestor.RecentActivity(60)
	if err != nil {
		t.Fatalf("RecentActivity failed: %v", err)
	}
	if len(logs) != 1 || logs[0].DeviceLogID != 2 {
		t.Errorf("window wrong: %+v", logs)
	}
}

func TestCountDeviceLogs(t *testing.T) {
	ingestor, fake, _, _ := newTestIngestor(t)
	addLog(fake, -time.Hour, 0)
	addLog(fake, -time.Minute, 1)

	n, err := ingestor.CountDeviceLogs(context.Background())
	if err != nil {
		t.Fatalf("CountDeviceLogs failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}
