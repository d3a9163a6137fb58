package device

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// Thin typed wrappers over Request. Each one fixes the object name and the
// create/modify/destroy/load envelope; callers never build raw payloads.

// CreateUser creates a user row on the reader and returns its device ID
func (c *Client) CreateUser(ctx context.Context, u UserRecord) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{Object: ObjectUsers, Values: []interface{}{u}}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// ModifyUser updates a user row on the reader
func (c *Client) ModifyUser(ctx context.Context, deviceID int64, u UserRecord) error {
	return c.Request(ctx, "modify_objects.fcgi", modifyRequest{
		Object: ObjectUsers,
		Values: u,
		Where:  WhereIDEquals(ObjectUsers, deviceID),
	}, nil)
}

// DestroyUser deletes a user row on the reader
func (c *Client) DestroyUser(ctx context.Context, deviceID int64) error {
	return c.Request(ctx, "destroy_objects.fcgi", destroyRequest{
		Object: ObjectUsers,
		Where:  WhereIDEquals(ObjectUsers, deviceID),
	}, nil)
}

// LoadUsers lists user rows, optionally filtered
func (c *Client) LoadUsers(ctx context.Context, where *Where) ([]UserRecord, error) {
	var resp struct {
		Users []UserRecord `json:"users"`
	}
	err := c.Request(ctx, "load_objects.fcgi", loadRequest{Object: ObjectUsers, Where: where}, &resp)
	return resp.Users, err
}

// SetUserImage uploads a face image for a user (binary body)
func (c *Client) SetUserImage(ctx context.Context, deviceID int64, image []byte, match bool) error {
	m := "0"
	if match {
		m = "1"
	}
	params := url.Values{}
	params.Set("user_id", itoa(deviceID))
	params.Set("match", m)
	params.Set("timestamp", itoa(time.Now().Unix()))
	return c.requestBinary(ctx, "user_set_image.fcgi", params, image, nil)
}

// StartFaceCapture puts the reader into remote enrollment mode for one user.
// The reader handles quality checks itself; the enrolled face can be pulled
// back afterwards with GetUserImage.
func (c *Client) StartFaceCapture(ctx context.Context, deviceID int64, quality int) error {
	params := url.Values{}
	params.Set("user_id", itoa(deviceID))
	params.Set("quality", strconv.Itoa(quality))
	_, err := c.requestBytes(ctx, "face_start_capture.fcgi", params)
	return err
}

// GetUserImage downloads a user's face image
func (c *Client) GetUserImage(ctx context.Context, deviceID int64) ([]byte, error) {
	params := url.Values{}
	params.Set("user_id", itoa(deviceID))
	return c.requestBytes(ctx, "user_get_image.fcgi", params)
}

// DestroyUserImages removes face images for the given users
func (c *Client) DestroyUserImages(ctx context.Context, deviceIDs []int64) error {
	return c.Request(ctx, "user_destroy_image.fcgi", map[string][]int64{"user_ids": deviceIDs}, nil)
}

// CreateCard registers a card for a user
func (c *Client) CreateCard(ctx context.Context, value, userDeviceID int64) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{
		Object: ObjectCards,
		Values: []interface{}{CardRecord{Value: value, UserID: userDeviceID}},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// CreateQRCode registers a QR credential for a user
func (c *Client) CreateQRCode(ctx context.Context, value string, userDeviceID int64) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{
		Object: ObjectQRCodes,
		Values: []interface{}{QRCodeRecord{Value: value, UserID: userDeviceID}},
	}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// CreateAccessRule creates an access rule on the reader
func (c *Client) CreateAccessRule(ctx context.Context, r AccessRuleRecord) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{Object: ObjectAccessRules, Values: []interface{}{r}}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// DestroyAccessRule deletes an access rule on the reader
func (c *Client) DestroyAccessRule(ctx context.Context, deviceID int64) error {
	return c.Request(ctx, "destroy_objects.fcgi", destroyRequest{
		Object: ObjectAccessRules,
		Where:  WhereIDEquals(ObjectAccessRules, deviceID),
	}, nil)
}

// LoadAccessRules lists access rules
func (c *Client) LoadAccessRules(ctx context.Context) ([]AccessRuleRecord, error) {
	var resp struct {
		AccessRules []AccessRuleRecord `json:"access_rules"`
	}
	err := c.Request(ctx, "load_objects.fcgi", loadRequest{Object: ObjectAccessRules}, &resp)
	return resp.AccessRules, err
}

// CreateTimeZone creates a time zone on the reader
func (c *Client) CreateTimeZone(ctx context.Context, tz TimeZoneRecord) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{Object: ObjectTimeZones, Values: []interface{}{tz}}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// DestroyTimeZone deletes a time zone on the reader
func (c *Client) DestroyTimeZone(ctx context.Context, deviceID int64) error {
	return c.Request(ctx, "destroy_objects.fcgi", destroyRequest{
		Object: ObjectTimeZones,
		Where:  WhereIDEquals(ObjectTimeZones, deviceID),
	}, nil)
}

// LoadTimeZones lists time zones
func (c *Client) LoadTimeZones(ctx context.Context) ([]TimeZoneRecord, error) {
	var resp struct {
		TimeZones []TimeZoneRecord `json:"time_zones"`
	}
	err := c.Request(ctx, "load_objects.fcgi", loadRequest{Object: ObjectTimeZones}, &resp)
	return resp.TimeZones, err
}

// CreateTimeSpan creates one weekly window inside a device time zone
func (c *Client) CreateTimeSpan(ctx context.Context, span TimeSpanRecord) (int64, error) {
	var resp CreateResponse
	err := c.Request(ctx, "create_objects.fcgi", createRequest{Object: ObjectTimeSpans, Values: []interface{}{span}}, &resp)
	if err != nil {
		return 0, err
	}
	return resp.FirstID()
}

// CreateUserAccessRule links a device user to a device access rule
func (c *Client) CreateUserAccessRule(ctx context.Context, userDeviceID, ruleDeviceID int64) error {
	return c.Request(ctx, "create_objects.fcgi", createRequest{
		Object: ObjectUserAccessRules,
		Values: []interface{}{UserAccessRuleRecord{UserID: userDeviceID, AccessRuleID: ruleDeviceID}},
	}, nil)
}

// LoadAccessLogs lists access log rows, optionally filtered, ordered by id
func (c *Client) LoadAccessLogs(ctx context.Context, where *Where) ([]AccessLogRecord, error) {
	var resp struct {
		AccessLogs []AccessLogRecord `json:"access_logs"`
	}
	err := c.Request(ctx, "load_objects.fcgi", loadRequest{Object: ObjectAccessLogs, Where: where, Order: []string{"id"}}, &resp)
	return resp.AccessLogs, err
}

// LoadAreas lists the reader's configured areas/portals
func (c *Client) LoadAreas(ctx context.Context) ([]AreaRecord, error) {
	var resp struct {
		Areas []AreaRecord `json:"areas"`
	}
	err := c.Request(ctx, "load_objects.fcgi", loadRequest{Object: ObjectAreas}, &resp)
	return resp.Areas, err
}

// ExecuteActions triggers device actions such as opening the door relay
func (c *Client) ExecuteActions(ctx context.Context, actions []Action) error {
	return c.Request(ctx, "execute_actions.fcgi", map[string][]Action{"actions": actions}, nil)
}

// GetSystemInfo fetches firmware and capacity information
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	var info SystemInfo
	if err := c.Request(ctx, "system_information.fcgi", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// AlarmStatus fetches the current relay/alarm state
func (c *Client) AlarmStatus(ctx context.Context) (*AlarmState, error) {
	var state AlarmState
	if err := c.Request(ctx, "alarm_status.fcgi", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Reboot restarts the reader
func (c *Client) Reboot(ctx context.Context) error {
	return c.Request(ctx, "reboot.fcgi", nil, nil)
}
