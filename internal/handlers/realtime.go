package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/models"
)

// pollLogs ingests new reader logs and returns them with an updated cursor.
// Dashboards call this every few seconds with the cursor they last received.
func (r *Router) pollLogs(w http.ResponseWriter, req *http.Request) {
	since, _ := strconv.ParseInt(req.URL.Query().Get("since"), 10, 64)
	result, err := r.ingestor.Poll(req.Context(), since)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (r *Router) recentLogs(w http.ResponseWriter, req *http.Request) {
	minutes, err := strconv.Atoi(req.URL.Query().Get("minutes"))
	if err != nil || minutes <= 0 {
		minutes = 60
	}
	logs, err := r.ingestor.RecentActivity(minutes)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, logs)
}

func (r *Router) alarmStatus(w http.ResponseWriter, req *http.Request) {
	report, err := r.ingestor.CheckAlarmStatus(req.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// openDoor triggers the primary reader's door relay
func (r *Router) openDoor(w http.ResponseWriter, req *http.Request) {
	coordinator := r.orchestrator.Coordinator()
	err := coordinator.OpenDoor(req.Context(), []device.Action{{Action: "sec_box", Parameters: "id=65793, reason=3"}})
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"opened": true})
}

type captureRequest struct {
	Quality int `json:"quality"`
}

// captureFace enrolls a user's face on the primary reader and stores the
// captured image on the canonical user
func (r *Router) captureFace(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var body captureRequest
	_ = json.NewDecoder(req.Body).Decode(&body)

	result, err := r.orchestrator.Coordinator().CaptureUserFace(req.Context(), id, body.Quality)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type rebootRequest struct {
	DeviceIndex int `json:"deviceIndex"`
}

func (r *Router) rebootDevice(w http.ResponseWriter, req *http.Request) {
	var body rebootRequest
	_ = json.NewDecoder(req.Body).Decode(&body)
	if body.DeviceIndex == 0 {
		body.DeviceIndex = models.PrimaryDevice
	}

	if err := r.orchestrator.Coordinator().RebootDevice(req.Context(), body.DeviceIndex); err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"rebooting": true, "deviceIndex": body.DeviceIndex})
}
