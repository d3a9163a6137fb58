package handlers

import (
	"encoding/json"
	"net/http"

	syncengine "github.com/facegate-io/facegate/internal/sync"
	"github.com/gorilla/mux"
)

type fullSyncRequest struct {
	Direction  syncengine.Direction `json:"direction"`
	ClearLocal bool                 `json:"clearLocal"`
}

func (r *Router) fullSync(w http.ResponseWriter, req *http.Request) {
	var body fullSyncRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Direction == "" {
		body.Direction = syncengine.DirectionToDevice
	}

	resp, err := r.orchestrator.FullSync(req.Context(), body.Direction, body.ClearLocal)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// Partial and failed sub-results travel in the body
	respondJSON(w, http.StatusOK, resp)
}

type bulkSyncRequest struct {
	Direction syncengine.Direction `json:"direction"`
	LocalIDs  []uint               `json:"localIds,omitempty"`
	Overwrite bool                 `json:"overwrite"`
}

func (r *Router) bulkSync(w http.ResponseWriter, req *http.Request) {
	entityType := mux.Vars(req)["entityType"]

	var body bulkSyncRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Direction == "" {
		body.Direction = syncengine.DirectionToDevice
	}

	result, err := r.orchestrator.BulkSync(req.Context(), entityType, body.Direction, syncengine.BulkSyncOptions{
		LocalIDs:  body.LocalIDs,
		Overwrite: body.Overwrite,
		User:      syncengine.SyncUserOptions{SyncImage: true, SyncCards: true, SyncRules: true},
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (r *Router) compare(w http.ResponseWriter, req *http.Request) {
	entityType := mux.Vars(req)["entityType"]
	report, err := r.orchestrator.Compare(req.Context(), entityType)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (r *Router) statistics(w http.ResponseWriter, req *http.Request) {
	stats, err := r.orchestrator.Statistics(req.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (r *Router) cleanupOrphans(w http.ResponseWriter, req *http.Request) {
	removed, err := r.orchestrator.CleanupOrphans()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}
