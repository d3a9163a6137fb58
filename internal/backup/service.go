package backup

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facegate-io/facegate/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const snapshotVersion = "1.0.0"
const snapshotSystem = "facegate"

// Service exports and restores canonical-store snapshots
type Service struct {
	db       *gorm.DB
	dir      string
	logLimit int // max access-log rows per export
}

// NewService creates a snapshot service writing into dir
func NewService(db *gorm.DB, dir string, logLimit int) *Service {
	return &Service{db: db, dir: dir, logLimit: logLimit}
}

// Metadata describes one snapshot document
type Metadata struct {
	BackupDate      time.Time `json:"backup_date"`
	Version         string    `json:"version"`
	System          string    `json:"system"`
	IncludeImages   bool      `json:"include_images"`
	IncludeLogs     bool      `json:"include_logs"`
	SizeBytes       int       `json:"size_bytes"`
	SizeMB          float64   `json:"size_mb"`
	DurationSeconds float64   `json:"duration_seconds"`
}

// Relationships carries the join-table edges, keyed by exported parent IDs
type Relationships struct {
	UserAccessRules     []models.UserAccessRule     `json:"user_access_rules"`
	UserGroups          []models.UserGroup          `json:"user_groups"`
	GroupAccessRules    []models.GroupAccessRule    `json:"group_access_rules"`
	AccessRuleTimeZones []models.AccessRuleTimeZone `json:"access_rule_time_zones"`
	PortalAccessRules   []models.PortalAccessRule   `json:"portal_access_rules"`
}

// Data is the payload half of a snapshot document
type Data struct {
	TimeZones     []models.TimeZone   `json:"time_zones"`
	AccessRules   []models.AccessRule `json:"access_rules"`
	Groups        []models.Group      `json:"groups"`
	Portals       []models.Portal     `json:"portals"`
	Users         []models.User       `json:"users"`
	AccessLogs    []models.AccessLog  `json:"access_logs,omitempty"`
	Relationships Relationships       `json:"relationships"`
}

// Document is a complete snapshot
type Document struct {
	Metadata Metadata `json:"metadata"`
	Data     Data     `json:"data"`
}

// SnapshotOptions tune an export
type SnapshotOptions struct {
	IncludeImages bool
	IncludeLogs   bool
	Compress      bool
}

// SnapshotInfo describes a written snapshot file
type SnapshotInfo struct {
	Filename  string   `json:"filename"`
	Path      string   `json:"path"`
	SizeBytes int      `json:"sizeBytes"`
	Metadata  Metadata `json:"metadata"`
}

// CreateSnapshot exports the canonical store to a snapshot file under the
// service directory. Export order is fixed so documents diff cleanly.
func (s *Service) CreateSnapshot(opts SnapshotOptions) (*SnapshotInfo, error) {
	start := time.Now()
	doc := Document{}

	if err := s.db.Preload("TimeSpans").Find(&doc.Data.TimeZones).Error; err != nil {
		return nil, fmt.Errorf("failed to export time zones: %w", err)
	}
	if err := s.db.Find(&doc.Data.AccessRules).Error; err != nil {
		return nil, fmt.Errorf("failed to export access rules: %w", err)
	}
	if err := s.db.Find(&doc.Data.Groups).Error; err != nil {
		return nil, fmt.Errorf("failed to export groups: %w", err)
	}
	if err := s.db.Find(&doc.Data.Portals).Error; err != nil {
		return nil, fmt.Errorf("failed to export portals: %w", err)
	}
	if err := s.db.Preload("Cards").Preload("QRCodes").Preload("Templates").Find(&doc.Data.Users).Error; err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	if !opts.IncludeImages {
		for i := range doc.Data.Users {
			doc.Data.Users[i].Image = ""
		}
	}
	if opts.IncludeLogs {
		q := s.db.Order("id")
		if s.logLimit > 0 {
			q = q.Limit(s.logLimit)
		}
		if err := q.Find(&doc.Data.AccessLogs).Error; err != nil {
			return nil, fmt.Errorf("failed to export access logs: %w", err)
		}
	}

	rel := &doc.Data.Relationships
	for _, pair := range []struct {
		dst interface{}
		msg string
	}{
		{&rel.UserAccessRules, "user access rules"},
		{&rel.UserGroups, "user groups"},
		{&rel.GroupAccessRules, "group access rules"},
		{&rel.AccessRuleTimeZones, "access rule time zones"},
		{&rel.PortalAccessRules, "portal access rules"},
	} {
		if err := s.db.Find(pair.dst).Error; err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", pair.msg, err)
		}
	}

	payload, err := json.Marshal(doc.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	doc.Metadata = Metadata{
		BackupDate:      start.UTC(),
		Version:         snapshotVersion,
		System:          snapshotSystem,
		IncludeImages:   opts.IncludeImages,
		IncludeLogs:     opts.IncludeLogs,
		SizeBytes:       len(payload),
		SizeMB:          float64(len(payload)) / (1024 * 1024),
		DurationSeconds: time.Since(start).Seconds(),
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}

	stamp := start.Format("20060102_150405")
	jsonName := fmt.Sprintf("idface_backup_%s.json", stamp)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	filename := jsonName
	content := raw
	if opts.Compress {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		entry, err := zw.Create(jsonName)
		if err == nil {
			_, err = entry.Write(raw)
		}
		if err == nil {
			err = zw.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to compress snapshot: %w", err)
		}
		filename = fmt.Sprintf("idface_backup_%s.zip", stamp)
		content = buf.Bytes()
	}

	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}

	log.Printf("📦 Snapshot %s written (%d bytes, %d users, %d rules)",
		filename, len(content), len(doc.Data.Users), len(doc.Data.AccessRules))
	return &SnapshotInfo{Filename: filename, Path: path, SizeBytes: len(content), Metadata: doc.Metadata}, nil
}

// RestoreOptions tune an import
type RestoreOptions struct {
	ClearBefore  bool
	SkipExisting bool // match by natural key (name/registration)
	RestoreLogs  bool
}

// TypeCounts is the per-entity-type outcome of a restore
type TypeCounts struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RestoreReport summarizes one restore pass
type RestoreReport struct {
	Counts   map[string]*TypeCounts `json:"counts"`
	Duration float64                `json:"duration"`
}

func (r *RestoreReport) counts(entityType string) *TypeCounts {
	c, ok := r.Counts[entityType]
	if !ok {
		c = &TypeCounts{}
		r.Counts[entityType] = c
	}
	return c
}

// Restore imports a snapshot document into the canonical store. Restoration
// is dependency-ordered because edges reference parent IDs that must exist
// first. Row failures are counted, never fatal.
func (s *Service) Restore(data []byte, opts RestoreOptions) (*RestoreReport, error) {
	start := time.Now()
	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}

	report := &RestoreReport{Counts: map[string]*TypeCounts{}}

	if opts.ClearBefore {
		if err := s.clearTables(); err != nil {
			return nil, fmt.Errorf("failed to clear tables before restore: %w", err)
		}
	}

	// Exported ID -> restored ID, per parent type; edges are rewired through
	// these maps
	tzIDs := map[uint]uint{}
	ruleIDs := map[uint]uint{}
	groupIDs := map[uint]uint{}
	portalIDs := map[uint]uint{}
	userIDs := map[uint]uint{}

	for _, tz := range doc.Data.TimeZones {
		c := report.counts(models.EntityTimeZones)
		oldID := tz.LocalID
		if opts.SkipExisting {
			var existing models.TimeZone
			if err := s.db.Where("name = ?", tz.Name).First(&existing).Error; err == nil {
				tzIDs[oldID] = existing.LocalID
				c.Skipped++
				continue
			}
		}
		spans := tz.TimeSpans
		tz.LocalID = 0
		tz.TimeSpans = nil
		if err := s.db.Create(&tz).Error; err != nil {
			c.Failed++
			continue
		}
		for _, span := range spans {
			span.ID = 0
			span.TimeZoneID = tz.LocalID
			if err := s.db.Create(&span).Error; err != nil {
				c.Failed++
			}
		}
		tzIDs[oldID] = tz.LocalID
		c.Imported++
	}

	for _, rule := range doc.Data.AccessRules {
		c := report.counts(models.EntityAccessRules)
		oldID := rule.LocalID
		if opts.SkipExisting {
			var existing models.AccessRule
			if err := s.db.Where("name = ?", rule.Name).First(&existing).Error; err == nil {
				ruleIDs[oldID] = existing.LocalID
				c.Skipped++
				continue
			}
		}
		rule.LocalID = 0
		if err := s.db.Create(&rule).Error; err != nil {
			c.Failed++
			continue
		}
		ruleIDs[oldID] = rule.LocalID
		c.Imported++
	}

	for _, group := range doc.Data.Groups {
		c := report.counts(models.EntityGroups)
		oldID := group.LocalID
		if opts.SkipExisting {
			var existing models.Group
			if err := s.db.Where("name = ?", group.Name).First(&existing).Error; err == nil {
				groupIDs[oldID] = existing.LocalID
				c.Skipped++
				continue
			}
		}
		group.LocalID = 0
		if err := s.db.Create(&group).Error; err != nil {
			c.Failed++
			continue
		}
		groupIDs[oldID] = group.LocalID
		c.Imported++
	}

	for _, portal := range doc.Data.Portals {
		c := report.counts(models.EntityPortals)
		oldID := portal.LocalID
		if opts.SkipExisting {
			var existing models.Portal
			if err := s.db.Where("name = ?", portal.Name).First(&existing).Error; err == nil {
				portalIDs[oldID] = existing.LocalID
				c.Skipped++
				continue
			}
		}
		portal.LocalID = 0
		if err := s.db.Create(&portal).Error; err != nil {
			c.Failed++
			continue
		}
		portalIDs[oldID] = portal.LocalID
		c.Imported++
	}

	for _, user := range doc.Data.Users {
		c := report.counts(models.EntityUsers)
		oldID := user.LocalID
		if opts.SkipExisting && s.userExists(&user) {
			if existingID, ok := s.existingUserID(&user); ok {
				userIDs[oldID] = existingID
			}
			c.Skipped++
			continue
		}
		cards, qrcodes, templates := user.Cards, user.QRCodes, user.Templates
		user.LocalID = 0
		user.Cards, user.QRCodes, user.Templates = nil, nil, nil
		if err := s.db.Create(&user).Error; err != nil {
			c.Failed++
			continue
		}
		for _, card := range cards {
			card.ID = 0
			card.UserID = user.LocalID
			if err := s.db.Create(&card).Error; err != nil {
				c.Failed++
			}
		}
		for _, qr := range qrcodes {
			qr.ID = 0
			qr.UserID = user.LocalID
			if err := s.db.Create(&qr).Error; err != nil {
				c.Failed++
			}
		}
		for _, tpl := range templates {
			tpl.ID = 0
			tpl.UserID = user.LocalID
			if err := s.db.Create(&tpl).Error; err != nil {
				c.Failed++
			}
		}
		userIDs[oldID] = user.LocalID
		c.Imported++
	}

	s.restoreEdges(doc, report, userIDs, ruleIDs, groupIDs, portalIDs, tzIDs)

	if opts.RestoreLogs {
		c := report.counts(models.EntityAccessLogs)
		for _, row := range doc.Data.AccessLogs {
			row.ID = 0
			row.UserID = remapPtr(row.UserID, userIDs)
			row.PortalID = remapPtr(row.PortalID, portalIDs)
			res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
			switch {
			case res.Error != nil:
				c.Failed++
			case res.RowsAffected == 0:
				c.Skipped++
			default:
				c.Imported++
			}
		}
	}

	report.Duration = time.Since(start).Seconds()
	log.Printf("✅ Restore finished in %.2fs", report.Duration)
	return report, nil
}

// remapPtr translates an exported parent reference, dropping it when the
// parent did not survive the restore
func remapPtr(p *uint, ids map[uint]uint) *uint {
	if p == nil {
		return nil
	}
	if newID, ok := ids[*p]; ok {
		return &newID
	}
	return nil
}

// restoreEdges rewires and inserts the relationship rows. An edge whose
// parent did not survive the restore is counted as failed.
func (s *Service) restoreEdges(doc *Document, report *RestoreReport, userIDs, ruleIDs, groupIDs, portalIDs, tzIDs map[uint]uint) {
	c := report.counts("relationships")

	for _, e := range doc.Data.Relationships.UserAccessRules {
		userID, uok := userIDs[e.UserID]
		ruleID, rok := ruleIDs[e.AccessRuleID]
		if !uok || !rok {
			c.Failed++
			continue
		}
		edge := models.UserAccessRule{UserID: userID, AccessRuleID: ruleID}
		s.insertEdge(&edge, c)
	}
	for _, e := range doc.Data.Relationships.UserGroups {
		userID, uok := userIDs[e.UserID]
		groupID, gok := groupIDs[e.GroupID]
		if !uok || !gok {
			c.Failed++
			continue
		}
		edge := models.UserGroup{UserID: userID, GroupID: groupID}
		s.insertEdge(&edge, c)
	}
	for _, e := range doc.Data.Relationships.GroupAccessRules {
		groupID, gok := groupIDs[e.GroupID]
		ruleID, rok := ruleIDs[e.AccessRuleID]
		if !gok || !rok {
			c.Failed++
			continue
		}
		edge := models.GroupAccessRule{GroupID: groupID, AccessRuleID: ruleID}
		s.insertEdge(&edge, c)
	}
	for _, e := range doc.Data.Relationships.AccessRuleTimeZones {
		ruleID, rok := ruleIDs[e.AccessRuleID]
		tzID, tok := tzIDs[e.TimeZoneID]
		if !rok || !tok {
			c.Failed++
			continue
		}
		edge := models.AccessRuleTimeZone{AccessRuleID: ruleID, TimeZoneID: tzID}
		s.insertEdge(&edge, c)
	}
	for _, e := range doc.Data.Relationships.PortalAccessRules {
		portalID, pok := portalIDs[e.PortalID]
		ruleID, rok := ruleIDs[e.AccessRuleID]
		if !pok || !rok {
			c.Failed++
			continue
		}
		edge := models.PortalAccessRule{PortalID: portalID, AccessRuleID: ruleID}
		s.insertEdge(&edge, c)
	}
}

func (s *Service) insertEdge(edge interface{}, c *TypeCounts) {
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(edge)
	switch {
	case res.Error != nil:
		c.Failed++
	case res.RowsAffected == 0:
		c.Skipped++
	default:
		c.Imported++
	}
}

// userExists checks the natural key: registration when present, name otherwise
func (s *Service) userExists(u *models.User) bool {
	_, ok := s.existingUserID(u)
	return ok
}

func (s *Service) existingUserID(u *models.User) (uint, bool) {
	var existing models.User
	var err error
	if u.Registration != nil {
		err = s.db.Where("registration = ?", *u.Registration).First(&existing).Error
	} else {
		err = s.db.Where("name = ?", u.Name).First(&existing).Error
	}
	if err != nil {
		return 0, false
	}
	return existing.LocalID, true
}

// clearTables empties the store in strict dependency order: logs, join
// edges, leaf attachments, then parents
func (s *Service) clearTables() error {
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
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(table).Error; err != nil {
			return err
		}
	}
	return nil
}

// ValidationReport describes a snapshot without restoring it
type ValidationReport struct {
	Valid      bool           `json:"valid"`
	Version    string         `json:"version,omitempty"`
	BackupDate *time.Time     `json:"backupDate,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Validate checks a snapshot's structure and reports per-type record counts
func (s *Service) Validate(data []byte) *ValidationReport {
	doc, err := parseDocument(data)
	if err != nil {
		return &ValidationReport{Valid: false, Error: err.Error()}
	}
	date := doc.Metadata.BackupDate
	return &ValidationReport{
		Valid:      true,
		Version:    doc.Metadata.Version,
		BackupDate: &date,
		Counts: map[string]int{
			models.EntityTimeZones:   len(doc.Data.TimeZones),
			models.EntityAccessRules: len(doc.Data.AccessRules),
			models.EntityGroups:      len(doc.Data.Groups),
			models.EntityPortals:     len(doc.Data.Portals),
			models.EntityUsers:       len(doc.Data.Users),
			models.EntityAccessLogs:  len(doc.Data.AccessLogs),
		},
	}
}

// BackupFile is one on-disk snapshot
type BackupFile struct {
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"sizeBytes"`
	ModTime   time.Time `json:"modTime"`
}

// ListBackups inventories the snapshot directory, newest first
func (s *Service) ListBackups() ([]BackupFile, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []BackupFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "idface_backup_") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, BackupFile{Filename: entry.Name(), SizeBytes: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].ModTime.After(files[j].ModTime) })
	return files, nil
}

// parseDocument decodes a snapshot, unwrapping a zip archive when present.
// A document is well-formed only when its top level is exactly the metadata
// and data keys.
func parseDocument(data []byte) (*Document, error) {
	if len(data) >= 2 && data[0] == 'P' && data[1] == 'K' {
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("corrupt snapshot archive: %w", err)
		}
		if len(zr.File) == 0 {
			return nil, fmt.Errorf("snapshot archive is empty")
		}
		rc, err := zr.File[0].Open()
		if err != nil {
			return nil, fmt.Errorf("corrupt snapshot archive: %w", err)
		}
		defer rc.Close()
		data, err = io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("corrupt snapshot archive: %w", err)
		}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	if _, ok := top["metadata"]; !ok {
		return nil, fmt.Errorf("snapshot is missing the metadata section")
	}
	if _, ok := top["data"]; !ok {
		return nil, fmt.Errorf("snapshot is missing the data section")
	}
	if len(top) != 2 {
		return nil, fmt.Errorf("snapshot has unexpected top-level keys")
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed snapshot: %w", err)
	}
	return &doc, nil
}
