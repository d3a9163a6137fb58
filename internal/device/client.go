package device

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/facegate-io/facegate/internal/config"
)

// DeviceError is returned for any non-2xx reply from a reader
type DeviceError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s: status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// ErrNoSession is returned by Logout when no session is active
var ErrNoSession = fmt.Errorf("no active device session")

// Client is an authenticated JSON/HTTP client for one iDFace reader.
// The session token is instance-scoped; concurrent use of one Client against
// the same reader must be serialized by the caller.
type Client struct {
	baseURL    string
	login      string
	password   string
	sessionTTL time.Duration
	http       *http.Client

	session    string
	sessionExp time.Time
}

// NewClient creates a client for one reader. Clients are plain values to be
// injected where needed; there are no package-level instances.
func NewClient(cfg config.DeviceConfig) *Client {
	return &Client{
		baseURL:    "http://" + cfg.Host,
		login:      cfg.Login,
		password:   cfg.Password,
		sessionTTL: cfg.SessionTTL,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

// Login opens a session with the reader
func (c *Client) Login(ctx context.Context) error {
	payload := map[string]string{"login": c.login, "password": c.password}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login.fcgi", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("device login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeviceError{Endpoint: "login.fcgi", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("device login: decode: %w", err)
	}
	if out.Session == "" {
		return fmt.Errorf("device login: empty session token")
	}

	c.session = out.Session
	c.sessionExp = time.Now().Add(c.sessionTTL)
	return nil
}

// Logout closes the current session. Safe to call with no session.
func (c *Client) Logout(ctx context.Context) error {
	if c.session == "" {
		return nil
	}
	defer func() {
		c.session = ""
		c.sessionExp = time.Time{}
	}()

	u := c.baseURL + "/logout.fcgi?session=" + url.QueryEscape(c.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("device logout: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ensureSession re-authenticates lazily when no session exists or the
// locally tracked expiry has passed
func (c *Client) ensureSession(ctx context.Context) error {
	if c.session != "" && time.Now().Before(c.sessionExp) {
		return nil
	}
	return c.Login(ctx)
}

// Request issues one authenticated JSON call. No retries: callers own retry
// policy, and a timeout surfaces as a plain transport error.
func (c *Client) Request(ctx context.Context, endpoint string, payload, result interface{}) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("device %s: encode: %w", endpoint, err)
		}
		body = bytes.NewReader(raw)
	}

	u := c.baseURL + "/" + endpoint + "?session=" + url.QueryEscape(c.session)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("device %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeviceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if result == nil {
		return nil
	}
	// Some endpoints reply with an empty body on success
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("device %s: read: %w", endpoint, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("device %s: decode: %w", endpoint, err)
	}
	return nil
}

// requestBinary issues one authenticated call with a raw octet-stream body
func (c *Client) requestBinary(ctx context.Context, endpoint string, params url.Values, data []byte, result interface{}) error {
	if err := c.ensureSession(ctx); err != nil {
		return err
	}

	params.Set("session", c.session)
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("device %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeviceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if result == nil {
		return nil
	}
	raw, _ := io.ReadAll(resp.Body)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, result)
}

// requestBytes issues one authenticated call and returns the raw response body
func (c *Client) requestBytes(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	if err := c.ensureSession(ctx); err != nil {
		return nil, err
	}

	params.Set("session", c.session)
	u := c.baseURL + "/" + endpoint + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("device %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &DeviceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return io.ReadAll(resp.Body)
}

// WithSession runs fn inside a login/logout pair. Logout runs even when fn
// fails; its own error is ignored, matching session teardown semantics.
func (c *Client) WithSession(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.Login(ctx); err != nil {
		return err
	}
	defer func() {
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = c.Logout(logoutCtx)
	}()
	return fn(ctx)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
