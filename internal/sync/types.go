package sync

import (
	"time"
)

// Direction of a synchronization pass
type Direction string

const (
	DirectionToDevice      Direction = "to_device"
	DirectionFromDevice    Direction = "from_device"
	DirectionBidirectional Direction = "bidirectional"
)

// Status of one entity-type synchronization
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial"
)

// Bulk operations keep at most this many error samples so responses stay small
const maxErrorSamples = 10

// EntitySyncResult summarizes one entity-type pass. Expected operational
// failures land in the counts and error samples, never in a returned error.
type EntitySyncResult struct {
	EntityType string   `json:"entityType"`
	Status     Status   `json:"status"`
	Total      int      `json:"totalCount"`
	Success    int      `json:"successCount"`
	Failed     int      `json:"failedCount"`
	Skipped    int      `json:"skippedCount"`
	Errors     []string `json:"errors,omitempty"`
	Duration   float64  `json:"duration"` // seconds
}

func newResult(entityType string) *EntitySyncResult {
	return &EntitySyncResult{EntityType: entityType, Status: StatusCompleted}
}

// addError records a failure, keeping only the first maxErrorSamples messages
func (r *EntitySyncResult) addError(msg string) {
	r.Failed++
	if len(r.Errors) < maxErrorSamples {
		r.Errors = append(r.Errors, msg)
	}
}

// finish stamps duration and derives the final status from the counts
func (r *EntitySyncResult) finish(start time.Time) *EntitySyncResult {
	r.Duration = time.Since(start).Seconds()
	switch {
	case r.Failed == 0:
		r.Status = StatusCompleted
	case r.Success == 0 && r.Skipped == 0:
		r.Status = StatusFailed
	default:
		r.Status = StatusPartial
	}
	return r
}

// SyncResponse aggregates per-type results for one top-level operation
type SyncResponse struct {
	OperationID string             `json:"operationId"`
	Success     bool               `json:"success"`
	Direction   Direction          `json:"direction"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     time.Time          `json:"endTime"`
	Duration    float64            `json:"duration"`
	Results     []EntitySyncResult `json:"results"`
}

// Conflict reports one entity whose local and device attributes disagree.
// Conflicts are reported, never auto-resolved.
type Conflict struct {
	EntityType string                 `json:"entityType"`
	LocalID    uint                   `json:"localId"`
	DeviceID   int64                  `json:"deviceId"`
	Fields     []string               `json:"conflictFields"`
	LocalData  map[string]interface{} `json:"localData"`
	RemoteData map[string]interface{} `json:"remoteData"`
}

// ComparisonReport is the drift summary for one entity type on one reader
type ComparisonReport struct {
	EntityType  string     `json:"entityType"`
	DeviceIndex int        `json:"deviceIndex"`
	OnlyLocal   []uint     `json:"onlyLocal"`  // local IDs mapped to no remote row
	OnlyRemote  []int64    `json:"onlyRemote"` // device IDs with no canonical row
	Identical   int        `json:"identical"`
	Conflicts   []Conflict `json:"conflicts,omitempty"`
	CheckedAt   time.Time  `json:"checkedAt"`
}
