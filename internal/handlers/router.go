package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/facegate-io/facegate/internal/backup"
	"github.com/facegate-io/facegate/internal/buildinfo"
	"github.com/facegate-io/facegate/internal/config"
	"github.com/facegate-io/facegate/internal/ingest"
	"github.com/facegate-io/facegate/internal/middleware"
	syncengine "github.com/facegate-io/facegate/internal/sync"
	ws "github.com/facegate-io/facegate/internal/websocket"
	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

// Router wraps the mux router and the engine services
type Router struct {
	*mux.Router
	db           *gorm.DB
	cfg          *config.Config
	orchestrator *syncengine.Orchestrator
	ingestor     *ingest.Ingestor
	backups      *backup.Service
	hub          *ws.Hub
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *gorm.DB, cfg *config.Config, orchestrator *syncengine.Orchestrator, ingestor *ingest.Ingestor, backups *backup.Service, hub *ws.Hub) *Router {
	r := &Router{
		Router:       mux.NewRouter(),
		db:           db,
		cfg:          cfg,
		orchestrator: orchestrator,
		ingestor:     ingestor,
		backups:      backups,
		hub:          hub,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	// Entities
	api.HandleFunc("/users", r.createUser).Methods("POST")
	api.HandleFunc("/users", r.listUsers).Methods("GET")
	api.HandleFunc("/users/{id}", r.deleteUser).Methods("DELETE")
	api.HandleFunc("/users/{id}/sync", r.syncUser).Methods("POST")
	api.HandleFunc("/users/{id}/capture", r.captureFace).Methods("POST")
	api.HandleFunc("/visitors", r.createVisitor).Methods("POST")
	api.HandleFunc("/visitors/{id}", r.revokeVisitor).Methods("DELETE")
	api.HandleFunc("/time-zones", r.createTimeZone).Methods("POST")
	api.HandleFunc("/time-zones/{id}", r.deleteTimeZone).Methods("DELETE")
	api.HandleFunc("/access-rules", r.createAccessRule).Methods("POST")
	api.HandleFunc("/access-rules/{id}", r.deleteAccessRule).Methods("DELETE")
	api.HandleFunc("/qrcodes/{id}/image", r.renderQRCode).Methods("GET")

	// Sync engine
	api.HandleFunc("/sync/full", r.fullSync).Methods("POST")
	api.HandleFunc("/sync/{entityType}/bulk", r.bulkSync).Methods("POST")
	api.HandleFunc("/sync/compare/{entityType}", r.compare).Methods("GET")
	api.HandleFunc("/sync/statistics", r.statistics).Methods("GET")
	api.HandleFunc("/sync/cleanup", r.cleanupOrphans).Methods("POST")

	// Monitoring
	api.HandleFunc("/logs/poll", r.pollLogs).Methods("GET")
	api.HandleFunc("/logs/recent", r.recentLogs).Methods("GET")
	api.HandleFunc("/alarm", r.alarmStatus).Methods("GET")
	api.HandleFunc("/door/open", r.openDoor).Methods("POST")
	api.HandleFunc("/system/reboot", r.rebootDevice).Methods("POST")

	// Snapshots
	api.HandleFunc("/backups", r.createBackup).Methods("POST")
	api.HandleFunc("/backups", r.listBackups).Methods("GET")
	api.HandleFunc("/backups/restore", r.restoreBackup).Methods("POST")
	api.HandleFunc("/backups/validate", r.validateBackup).Methods("POST")

	// Dashboard websocket
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"startTime": buildinfo.StartTime,
		"commit":    buildinfo.CommitHash,
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
