package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/facegate-io/facegate/internal/models"
	syncengine "github.com/facegate-io/facegate/internal/sync"
	"github.com/facegate-io/facegate/internal/utils"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// pathID parses the {id} route variable
func pathID(req *http.Request) (uint, error) {
	raw := mux.Vars(req)["id"]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

type createUserRequest struct {
	Name         string     `json:"name"`
	Registration *string    `json:"registration,omitempty"`
	Password     string     `json:"password,omitempty"`
	BeginTime    *time.Time `json:"beginTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Image        string     `json:"image,omitempty"`
	Cards        []int64    `json:"cards,omitempty"`
	QRValues     []string   `json:"qrValues,omitempty"`
	RuleIDs      []uint     `json:"ruleIds,omitempty"`
}

func (r *Router) createUser(w http.ResponseWriter, req *http.Request) {
	var body createUserRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	user, result, err := r.orchestrator.Coordinator().CreateUser(req.Context(), syncengine.UserInput{
		Name:         body.Name,
		Registration: body.Registration,
		Password:     body.Password,
		BeginTime:    body.BeginTime,
		EndTime:      body.EndTime,
		Image:        body.Image,
		Cards:        body.Cards,
		QRValues:     body.QRValues,
		RuleLocalIDs: body.RuleIDs,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Device failures come back in the result body, not as an HTTP error
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user, "result": result})
}

func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	var users []models.User
	if err := r.db.Preload("Cards").Preload("QRCodes").Find(&users).Error; err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (r *Router) deleteUser(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if err := r.orchestrator.Coordinator().DeleteUser(req.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (r *Router) syncUser(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	result, err := r.orchestrator.Coordinator().SyncUserToDevices(req.Context(), id, syncengine.SyncUserOptions{
		SyncImage: true, SyncCards: true, SyncRules: true,
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "User not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

type createVisitorRequest struct {
	Name      string     `json:"name"`
	Document  *string    `json:"document,omitempty"`
	Host      string     `json:"host,omitempty"`
	Image     string     `json:"image,omitempty"`
	BeginTime *time.Time `json:"beginTime,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func (r *Router) createVisitor(w http.ResponseWriter, req *http.Request) {
	var body createVisitorRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	visitor, result, err := r.orchestrator.Coordinator().CreateVisitor(req.Context(), syncengine.VisitorInput{
		Name:      body.Name,
		Document:  body.Document,
		Host:      body.Host,
		Image:     body.Image,
		BeginTime: body.BeginTime,
		ExpiresAt: body.ExpiresAt,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"visitor": visitor, "result": result})
}

func (r *Router) revokeVisitor(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid visitor id")
		return
	}
	if err := r.orchestrator.Coordinator().RevokeVisitor(req.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Visitor not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

type spanRequest struct {
	Start string `json:"start"` // "HH:MM"
	End   string `json:"end"`
	Sun   bool   `json:"sun"`
	Mon   bool   `json:"mon"`
	Tue   bool   `json:"tue"`
	Wed   bool   `json:"wed"`
	Thu   bool   `json:"thu"`
	Fri   bool   `json:"fri"`
	Sat   bool   `json:"sat"`
}

type createTimeZoneRequest struct {
	Name  string        `json:"name"`
	Spans []spanRequest `json:"spans"`
}

func (r *Router) createTimeZone(w http.ResponseWriter, req *http.Request) {
	var body createTimeZoneRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}

	spans := make([]models.TimeSpan, 0, len(body.Spans))
	for _, s := range body.Spans {
		start, err := utils.ClockToSeconds(s.Start)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := utils.ClockToSeconds(s.End)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if end <= start {
			respondError(w, http.StatusBadRequest, "Span end must be after start")
			return
		}
		spans = append(spans, models.TimeSpan{
			Start: start, End: end,
			Sun: s.Sun, Mon: s.Mon, Tue: s.Tue, Wed: s.Wed, Thu: s.Thu, Fri: s.Fri, Sat: s.Sat,
		})
	}

	tz, result, err := r.orchestrator.Coordinator().CreateTimeZone(req.Context(), body.Name, spans)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"timeZone": tz, "result": result})
}

func (r *Router) deleteTimeZone(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid time zone id")
		return
	}
	if err := r.orchestrator.Coordinator().DeleteTimeZone(req.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Time zone not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type createAccessRuleRequest struct {
	Name        string `json:"name"`
	Type        int    `json:"type"`
	Priority    int    `json:"priority"`
	TimeZoneIDs []uint `json:"timeZoneIds,omitempty"`
}

func (r *Router) createAccessRule(w http.ResponseWriter, req *http.Request) {
	var body createAccessRuleRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if body.Type == 0 {
		body.Type = 1
	}
	rule, result, err := r.orchestrator.Coordinator().CreateAccessRule(req.Context(), body.Name, body.Type, body.Priority, body.TimeZoneIDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"accessRule": rule, "result": result})
}

func (r *Router) deleteAccessRule(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid access rule id")
		return
	}
	if err := r.orchestrator.Coordinator().DeleteAccessRule(req.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Access rule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// renderQRCode serves a stored QR credential as a PNG
func (r *Router) renderQRCode(w http.ResponseWriter, req *http.Request) {
	id, err := pathID(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid qr code id")
		return
	}
	var qr models.QRCode
	if err := r.db.First(&qr, id).Error; err != nil {
		respondError(w, http.StatusNotFound, "QR code not found")
		return
	}
	size, _ := strconv.Atoi(req.URL.Query().Get("size"))
	png, err := utils.RenderQRCode(qr.Value, size)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
