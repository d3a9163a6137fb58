package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Broadcaster receives every ingested log entry, typically a websocket hub
// fanning out to dashboard clients
type Broadcaster interface {
	Broadcast(event string, payload interface{})
}

// Ingestor pulls access logs from the primary reader into the canonical
// store. The vendor protocol has no server-side cursor, so filtering happens
// here; the unique index on (device_index, device_log_id) makes overlapping
// polls safe.
type Ingestor struct {
	db      *gorm.DB
	primary *device.Client
	hub     Broadcaster // nil when no dashboard is attached

	mu       sync.Mutex
	baseline time.Time // set on the first poll against an empty store
}

// NewIngestor creates a log ingestor. hub may be nil.
func NewIngestor(db *gorm.DB, primary *device.Client, hub Broadcaster) *Ingestor {
	return &Ingestor{db: db, primary: primary, hub: hub}
}

// LogEntry is one ingested log with display names resolved
type LogEntry struct {
	models.AccessLog
	UserName   string `json:"userName,omitempty"`
	PortalName string `json:"portalName,omitempty"`
}

// PollResult is the outcome of one poll pass
type PollResult struct {
	Cursor   int64      `json:"cursor"` // pass back on the next poll
	NewCount int        `json:"newCount"`
	Logs     []LogEntry `json:"logs"`
}

// eventKind maps the reader's numeric event codes to canonical kinds
func eventKind(code int) string {
	switch code {
	case 0:
		return models.EventAccessGranted
	case 1:
		return models.EventAccessDenied
	case 2:
		return models.EventUnknownUser
	case 3:
		return models.EventInvalidCredential
	case 4:
		return models.EventExpiredAccess
	case 5:
		return models.EventTimeRestriction
	case 6:
		return models.EventDoorForced
	case 7:
		return models.EventDoorLeftOpen
	default:
		return models.EventUnknown
	}
}

// Poll ingests reader logs newer than the caller's cursor and returns the new
// cursor. A zero cursor establishes a baseline and ingests nothing, so a
// fresh deployment never replays the reader's whole history. Callers are
// expected to poll every few seconds with the cursor they last received.
func (i *Ingestor) Poll(ctx context.Context, sinceID int64) (*PollResult, error) {
	since, baselineOnly, err := i.resolveCursor(sinceID)
	if err != nil {
		return nil, err
	}
	if baselineOnly {
		cursor, err := i.maxCanonicalID()
		if err != nil {
			return nil, err
		}
		return &PollResult{Cursor: cursor}, nil
	}

	records, err := i.primary.LoadAccessLogs(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load access logs from primary device: %w", err)
	}

	result := &PollResult{Cursor: sinceID}
	for _, rec := range records {
		ts := time.Unix(rec.Time, 0).UTC()
		// Inclusive on the cursor second: the timestamp filter only trims the
		// candidate set, the unique index decides what is actually new. A
		// strict filter would lose logs sharing the cursor log's second.
		if ts.Before(since) {
			continue
		}
		entry, inserted, err := i.ingestOne(rec, ts)
		if err != nil {
			log.Printf("⚠️ Failed to ingest device log %d: %v", rec.ID, err)
			continue
		}
		if !inserted {
			continue
		}
		result.NewCount++
		result.Logs = append(result.Logs, *entry)
		if int64(entry.ID) > result.Cursor {
			result.Cursor = int64(entry.ID)
		}
		if i.hub != nil {
			i.hub.Broadcast("access_log", entry)
		}
	}

	if result.NewCount > 0 {
		log.Printf("📦 Ingested %d new access logs (cursor %d)", result.NewCount, result.Cursor)
	}
	return result, nil
}

// resolveCursor turns the caller's cursor into a timestamp filter.
// baselineOnly is true for the very first call against an empty store.
func (i *Ingestor) resolveCursor(sinceID int64) (time.Time, bool, error) {
	if sinceID > 0 {
		var row models.AccessLog
		err := i.db.First(&row, sinceID).Error
		if err == nil {
			return row.Timestamp, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return time.Time{}, false, err
		}
		// Unknown cursor, fall through to baseline handling
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var latest models.AccessLog
	err := i.db.Order("id DESC").First(&latest).Error
	if err == nil {
		// Store already has logs; the baseline reply carries their max id
		// as the cursor, so the next poll resumes from there
		return time.Time{}, true, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, err
	}

	if i.baseline.IsZero() {
		i.baseline = time.Now().UTC()
		return time.Time{}, true, nil
	}
	// Empty store but a baseline is already set: ingest whatever the reader
	// produced since then
	return i.baseline, false, nil
}

// ingestOne inserts a single device log row, resolving display names.
// Returns inserted=false when the row already exists (overlapping poll).
func (i *Ingestor) ingestOne(rec device.AccessLogRecord, ts time.Time) (*LogEntry, bool, error) {
	row := models.AccessLog{
		DeviceIndex: models.PrimaryDevice,
		DeviceLogID: rec.ID,
		Event:       eventKind(rec.Event),
		Reason:      strconv.Itoa(rec.Reason),
		Timestamp:   ts,
	}
	if rec.CardValue != 0 {
		row.CardValue = strconv.FormatInt(rec.CardValue, 10)
	}

	entry := LogEntry{UserName: rec.UserName}

	if rec.UserID != 0 {
		var user models.User
		err := i.db.Joins("JOIN entity_mappings ON entity_mappings.local_id = users.id").
			Where("entity_mappings.entity_type = ? AND entity_mappings.device_index = ? AND entity_mappings.device_id = ?",
				models.EntityUsers, models.PrimaryDevice, rec.UserID).
			First(&user).Error
		if err == nil {
			row.UserID = &user.LocalID
			entry.UserName = user.Name
		}
	}
	if rec.PortalID != 0 {
		var portal models.Portal
		err := i.db.Where("primary_device_id = ?", rec.PortalID).First(&portal).Error
		if err == nil {
			row.PortalID = &portal.LocalID
			entry.PortalName = portal.Name
		}
	}

	// The unique index is the dedup authority; a conflicting insert is a
	// silent no-op, not an error
	res := i.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, false, nil
	}
	entry.AccessLog = row
	return &entry, true, nil
}

// maxCanonicalID returns the highest canonical log id, 0 for an empty store
func (i *Ingestor) maxCanonicalID() (int64, error) {
	var maxID int64
	err := i.db.Model(&models.AccessLog{}).Select("COALESCE(MAX(id), 0)").Scan(&maxID).Error
	return maxID, err
}

// AlarmReport is a timestamped relay/alarm snapshot
type AlarmReport struct {
	Active    bool      `json:"active"`
	Cause     int       `json:"cause"`
	CheckedAt time.Time `json:"checkedAt"`
}

// CheckAlarmStatus queries the primary reader's relay/alarm state
func (i *Ingestor) CheckAlarmStatus(ctx context.Context) (*AlarmReport, error) {
	state, err := i.primary.AlarmStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query alarm status: %w", err)
	}
	return &AlarmReport{Active: state.Active, Cause: state.Cause, CheckedAt: time.Now()}, nil
}

// CountDeviceLogs reports how many log rows the primary reader currently holds
func (i *Ingestor) CountDeviceLogs(ctx context.Context) (int, error) {
	records, err := i.primary.LoadAccessLogs(ctx, nil)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// RecentActivity lists canonical logs from the last given minutes, newest
// first
func (i *Ingestor) RecentActivity(minutes int) ([]models.AccessLog, error) {
	var logs []models.AccessLog
	cutoff := time.Now().Add(-time.Duration(minutes) * time.Minute)
	err := i.db.Where("timestamp >= ?", cutoff).Order("timestamp DESC").Find(&logs).Error
	return logs, err
}
