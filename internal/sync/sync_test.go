package sync

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/device/devicetest"
	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// newTestDB opens a fresh in-memory store with the full schema
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:synctest%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	err = db.AutoMigrate(
		&models.Admin{},
		&models.User{}, &models.Card{}, &models.QRCode{}, &models.Template{},
		&models.Visitor{},
		&models.AccessRule{}, &models.TimeZone{}, &models.TimeSpan{},
		&models.Portal{}, &models.Group{},
		&models.UserAccessRule{}, &models.UserGroup{}, &models.GroupAccessRule{},
		&models.AccessRuleTimeZone{}, &models.PortalAccessRule{},
		&models.EntityMapping{}, &models.AccessLog{}, &models.AuditLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	return db
}

// testRig bundles a store, two fake readers and a coordinator over them
type testRig struct {
	db          *gorm.DB
	primary     *devicetest.FakeReader
	secondary   *devicetest.FakeReader
	coordinator *Coordinator
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	db := newTestDB(t)
	primary := devicetest.New()
	secondary := devicetest.New()
	t.Cleanup(primary.Close)
	t.Cleanup(secondary.Close)

	coordinator := NewCoordinator(db, device.NewClient(primary.Config()), device.NewClient(secondary.Config()))
	return &testRig{db: db, primary: primary, secondary: secondary, coordinator: coordinator}
}

// countRows counts rows of one model
func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}
