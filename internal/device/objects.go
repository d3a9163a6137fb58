package device

import (
	"encoding/json"
	"fmt"
)

// Vendor object table names used by the create/modify/destroy/load envelopes
const (
	ObjectUsers           = "users"
	ObjectCards           = "cards"
	ObjectQRCodes         = "qrcodes"
	ObjectTemplates       = "templates"
	ObjectAccessRules     = "access_rules"
	ObjectTimeZones       = "time_zones"
	ObjectTimeSpans       = "time_spans"
	ObjectUserAccessRules = "user_access_rules"
	ObjectAccessLogs      = "access_logs"
	ObjectAreas           = "areas"
)

// Where is a typed filter for the vendor envelopes. It marshals to the wire
// form {object: {field: value}} / {object: {field: {op: value}}}.
type Where struct {
	object string
	fields map[string]interface{}
}

// WhereIDEquals matches rows of object with the given id
func WhereIDEquals(object string, id int64) *Where {
	return &Where{object: object, fields: map[string]interface{}{"id": id}}
}

// WhereIDGreaterThan matches rows of object with id strictly above the given one
func WhereIDGreaterThan(object string, id int64) *Where {
	return &Where{object: object, fields: map[string]interface{}{"id": map[string]int64{">": id}}}
}

// WhereFieldEquals matches rows of object with field equal to value
func WhereFieldEquals(object, field string, value interface{}) *Where {
	return &Where{object: object, fields: map[string]interface{}{field: value}}
}

// MarshalJSON implements json.Marshaler
func (w *Where) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]interface{}{w.object: w.fields})
}

// createRequest is the create_objects.fcgi envelope
type createRequest struct {
	Object string        `json:"object"`
	Values []interface{} `json:"values"`
}

// modifyRequest is the modify_objects.fcgi envelope
type modifyRequest struct {
	Object string      `json:"object"`
	Values interface{} `json:"values"`
	Where  *Where      `json:"where"`
}

// destroyRequest is the destroy_objects.fcgi envelope
type destroyRequest struct {
	Object string `json:"object"`
	Where  *Where `json:"where"`
}

// loadRequest is the load_objects.fcgi envelope
type loadRequest struct {
	Object string   `json:"object"`
	Where  *Where   `json:"where,omitempty"`
	Order  []string `json:"order,omitempty"`
}

// CreateResponse carries the IDs a reader assigned to created rows.
// Firmware versions differ on singular vs plural, so both are accepted.
type CreateResponse struct {
	IDs []int64 `json:"ids"`
	ID  int64   `json:"id"`
}

// FirstID returns the first assigned ID, or an error when the reader did
// not report one
func (r *CreateResponse) FirstID() (int64, error) {
	if len(r.IDs) > 0 {
		return r.IDs[0], nil
	}
	if r.ID != 0 {
		return r.ID, nil
	}
	return 0, fmt.Errorf("device did not return a created object id")
}

// UserRecord mirrors a row of the reader's users table
type UserRecord struct {
	ID           int64  `json:"id,omitempty"`
	Name         string `json:"name"`
	Registration string `json:"registration"`
	Password     string `json:"password"`
	Salt         string `json:"salt"`
	BeginTime    int64  `json:"begin_time,omitempty"`
	EndTime      int64  `json:"end_time,omitempty"`
}

// CardRecord mirrors a row of the reader's cards table
type CardRecord struct {
	ID     int64 `json:"id,omitempty"`
	Value  int64 `json:"value"`
	UserID int64 `json:"user_id"`
}

// QRCodeRecord mirrors a row of the reader's qrcodes table
type QRCodeRecord struct {
	ID     int64  `json:"id,omitempty"`
	Value  string `json:"value"`
	UserID int64  `json:"user_id"`
}

// AccessRuleRecord mirrors a row of the reader's access_rules table
type AccessRuleRecord struct {
	ID       int64  `json:"id,omitempty"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Priority int    `json:"priority"`
}

// TimeZoneRecord mirrors a row of the reader's time_zones table
type TimeZoneRecord struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
}

// TimeSpanRecord mirrors a row of the reader's time_spans table.
// Day flags are 0/1 on the wire.
type TimeSpanRecord struct {
	ID         int64 `json:"id,omitempty"`
	TimeZoneID int64 `json:"time_zone_id"`
	Start      int   `json:"start"`
	End        int   `json:"end"`
	Sun        int   `json:"sun"`
	Mon        int   `json:"mon"`
	Tue        int   `json:"tue"`
	Wed        int   `json:"wed"`
	Thu        int   `json:"thu"`
	Fri        int   `json:"fri"`
	Sat        int   `json:"sat"`
	Hol1       int   `json:"hol1"`
	Hol2       int   `json:"hol2"`
	Hol3       int   `json:"hol3"`
}

// UserAccessRuleRecord mirrors a row of the reader's user_access_rules table
type UserAccessRuleRecord struct {
	UserID       int64 `json:"user_id"`
	AccessRuleID int64 `json:"access_rule_id"`
}

// AccessLogRecord mirrors a row of the reader's access_logs table
type AccessLogRecord struct {
	ID        int64  `json:"id"`
	Time      int64  `json:"time"` // unix seconds
	Event     int    `json:"event"`
	UserID    int64  `json:"user_id"`
	PortalID  int64  `json:"portal_id"`
	Reason    int    `json:"reason"`
	CardValue int64  `json:"card_value"`
	UserName  string `json:"user_name,omitempty"`
}

// AreaRecord mirrors a row of the reader's areas table
type AreaRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SystemInfo is the reply of system_information.fcgi
type SystemInfo struct {
	DeviceID string `json:"device_id"`
	Serial   string `json:"serial"`
	Version  string `json:"version"`
	Capacity struct {
		MaxUsers     int `json:"max_users"`
		CurrentUsers int `json:"current_users"`
		CurrentFaces int `json:"current_faces"`
		CurrentCards int `json:"current_cards"`
	} `json:"capacity"`
}

// AlarmState is the reply of alarm_status.fcgi
type AlarmState struct {
	Active bool `json:"active"`
	Cause  int  `json:"cause"`
}

// Action is one entry of the execute_actions.fcgi envelope
type Action struct {
	Action     string `json:"action"`
	Parameters string `json:"parameters"`
}
