// Package devicetest provides an in-memory fake of the reader's JSON/HTTP
// protocol for tests. It tracks object tables, assigned IDs and face images,
// and can be told to fail specific endpoints or object creates.
package devicetest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/facegate-io/facegate/internal/config"
)

// Row is one fake object-table row
type Row map[string]interface{}

// FakeReader emulates one reader behind an httptest server
type FakeReader struct {
	srv *httptest.Server

	mu     sync.Mutex
	nextID int64
	tables map[string][]Row
	images map[string][]byte

	// FailCreates lists object names whose create_objects calls return 500
	FailCreates map[string]bool
	// FailEndpoints lists endpoint names (e.g. "user_set_image.fcgi") that
	// return 500
	FailEndpoints map[string]bool

	LoginCount  int
	LogoutCount int
	RebootCount int

	// Alarm state returned by alarm_status.fcgi
	AlarmActive bool
	AlarmCause  int
}

// New starts a fake reader
func New() *FakeReader {
	f := &FakeReader{
		nextID:        100, // away from local IDs so mixups are visible
		tables:        map[string][]Row{},
		images:        map[string][]byte{},
		FailCreates:   map[string]bool{},
		FailEndpoints: map[string]bool{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// Close shuts the fake down
func (f *FakeReader) Close() {
	f.srv.Close()
}

// Config returns a client configuration pointing at the fake
func (f *FakeReader) Config() config.DeviceConfig {
	return config.DeviceConfig{
		Host:       strings.TrimPrefix(f.srv.URL, "http://"),
		Login:      "admin",
		Password:   "admin",
		SessionTTL: time.Hour,
		Timeout:    5 * time.Second,
	}
}

// AddRow seeds one row and returns its assigned ID
func (f *FakeReader) AddRow(object string, row Row) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	row["id"] = float64(f.nextID)
	f.tables[object] = append(f.tables[object], row)
	return f.nextID
}

// Rows returns a copy of one object table
func (f *FakeReader) Rows(object string) []Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Row, len(f.tables[object]))
	copy(out, f.tables[object])
	return out
}

// Count reports how many rows one object table holds
func (f *FakeReader) Count(object string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tables[object])
}

// HasImage reports whether a face image was stored for a device user ID
func (f *FakeReader) HasImage(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.images[userID]
	return ok
}

func (f *FakeReader) handle(w http.ResponseWriter, r *http.Request) {
	endpoint := strings.TrimPrefix(r.URL.Path, "/")

	f.mu.Lock()
	failed := f.FailEndpoints[endpoint]
	f.mu.Unlock()
	if failed {
		http.Error(w, "forced failure", http.StatusInternalServerError)
		return
	}

	switch endpoint {
	case "login.fcgi":
		f.mu.Lock()
		f.LoginCount++
		n := f.LoginCount
		f.mu.Unlock()
		writeJSON(w, map[string]string{"session": fmt.Sprintf("sess-%d", n)})
		return
	case "logout.fcgi":
		f.mu.Lock()
		f.LogoutCount++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.URL.Query().Get("session") == "" {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}

	switch endpoint {
	case "create_objects.fcgi":
		f.handleCreate(w, r)
	case "modify_objects.fcgi":
		f.handleModify(w, r)
	case "destroy_objects.fcgi":
		f.handleDestroy(w, r)
	case "load_objects.fcgi":
		f.handleLoad(w, r)
	case "user_set_image.fcgi":
		f.mu.Lock()
		f.images[r.URL.Query().Get("user_id")] = []byte("img")
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case "user_get_image.fcgi":
		f.mu.Lock()
		img, ok := f.images[r.URL.Query().Get("user_id")]
		f.mu.Unlock()
		if !ok {
			http.Error(w, "no image", http.StatusNotFound)
			return
		}
		w.Write(img)
	case "user_destroy_image.fcgi":
		w.WriteHeader(http.StatusOK)
	case "face_start_capture.fcgi":
		// A successful capture leaves the enrolled face on the reader
		f.mu.Lock()
		f.images[r.URL.Query().Get("user_id")] = []byte("captured")
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case "execute_actions.fcgi":
		w.WriteHeader(http.StatusOK)
	case "reboot.fcgi":
		f.mu.Lock()
		f.RebootCount++
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	case "system_information.fcgi":
		f.mu.Lock()
		users := len(f.tables["users"])
		f.mu.Unlock()
		writeJSON(w, map[string]interface{}{
			"serial":  "FAKE-0001",
			"version": "1.0",
			"capacity": map[string]int{
				"max_users":     10000,
				"current_users": users,
				"current_faces": len(f.images),
			},
		})
	case "alarm_status.fcgi":
		f.mu.Lock()
		active, cause := f.AlarmActive, f.AlarmCause
		f.mu.Unlock()
		writeJSON(w, map[string]interface{}{"active": active, "cause": cause})
	default:
		http.Error(w, "unknown endpoint "+endpoint, http.StatusNotFound)
	}
}

func (f *FakeReader) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object string `json:"object"`
		Values []Row  `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	if f.FailCreates[req.Object] {
		f.mu.Unlock()
		http.Error(w, "forced create failure", http.StatusInternalServerError)
		return
	}
	ids := make([]int64, 0, len(req.Values))
	for _, row := range req.Values {
		f.nextID++
		row["id"] = float64(f.nextID)
		f.tables[req.Object] = append(f.tables[req.Object], row)
		ids = append(ids, f.nextID)
	}
	f.mu.Unlock()

	writeJSON(w, map[string][]int64{"ids": ids})
}

func (f *FakeReader) handleModify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object string                        `json:"object"`
		Values Row                           `json:"values"`
		Where  map[string]map[string]float64 `json:"where"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := req.Where[req.Object]["id"]

	f.mu.Lock()
	for _, row := range f.tables[req.Object] {
		if row["id"] == id {
			for k, v := range req.Values {
				row[k] = v
			}
		}
	}
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeReader) handleDestroy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object string                        `json:"object"`
		Where  map[string]map[string]float64 `json:"where"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := req.Where[req.Object]["id"]

	f.mu.Lock()
	kept := f.tables[req.Object][:0]
	for _, row := range f.tables[req.Object] {
		if row["id"] != id {
			kept = append(kept, row)
		}
	}
	f.tables[req.Object] = kept
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeReader) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Object string                            `json:"object"`
		Where  map[string]map[string]interface{} `json:"where"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	var out []Row
	for _, row := range f.tables[req.Object] {
		if matches(row, req.Where[req.Object]) {
			out = append(out, row)
		}
	}
	f.mu.Unlock()

	if out == nil {
		out = []Row{}
	}
	writeJSON(w, map[string][]Row{req.Object: out})
}

// matches applies the envelope's field filters: plain values compare equal,
// {">": v} compares greater-than
func matches(row Row, filters map[string]interface{}) bool {
	for field, cond := range filters {
		switch c := cond.(type) {
		case map[string]interface{}:
			if gt, ok := c[">"]; ok {
				rv, _ := row[field].(float64)
				gv, _ := gt.(float64)
				if !(rv > gv) {
					return false
				}
			}
		default:
			if row[field] != cond {
				return false
			}
		}
	}
	return true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
