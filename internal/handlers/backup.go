package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/facegate-io/facegate/internal/backup"
)

type createBackupRequest struct {
	IncludeImages bool `json:"includeImages"`
	IncludeLogs   bool `json:"includeLogs"`
	Compress      bool `json:"compress"`
}

func (r *Router) createBackup(w http.ResponseWriter, req *http.Request) {
	var body createBackupRequest
	if req.ContentLength > 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}
	info, err := r.backups.CreateSnapshot(backup.SnapshotOptions{
		IncludeImages: body.IncludeImages,
		IncludeLogs:   body.IncludeLogs,
		Compress:      body.Compress,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (r *Router) listBackups(w http.ResponseWriter, req *http.Request) {
	files, err := r.backups.ListBackups()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, files)
}

// restoreBackup accepts a snapshot document in the request body.
// Options travel as query parameters so the body stays raw.
func (r *Router) restoreBackup(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(req.Body)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Snapshot body is required")
		return
	}
	q := req.URL.Query()
	report, err := r.backups.Restore(data, backup.RestoreOptions{
		ClearBefore:  q.Get("clearBefore") == "true",
		SkipExisting: q.Get("skipExisting") != "false",
		RestoreLogs:  q.Get("restoreLogs") == "true",
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (r *Router) validateBackup(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(req.Body)
	if err != nil || len(data) == 0 {
		respondError(w, http.StatusBadRequest, "Snapshot body is required")
		return
	}
	respondJSON(w, http.StatusOK, r.backups.Validate(data))
}
