package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/facegate-io/facegate/internal/backup"
	"github.com/facegate-io/facegate/internal/config"
	"github.com/facegate-io/facegate/internal/database"
	"github.com/facegate-io/facegate/internal/device"
	"github.com/facegate-io/facegate/internal/handlers"
	"github.com/facegate-io/facegate/internal/ingest"
	"github.com/facegate-io/facegate/internal/models"
	syncengine "github.com/facegate-io/facegate/internal/sync"
	ws "github.com/facegate-io/facegate/internal/websocket"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize database (Detects Embedded vs External automatically)
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Note: db.Close() is called manually in shutdown handler below

	// 3. Auto-Migrate Schema
	log.Println("🚀 Synchronizing database schema...")
	err = db.AutoMigrate(
		&models.Admin{},
		&models.User{},
		&models.Card{},
		&models.QRCode{},
		&models.Template{},
		&models.Visitor{},
		&models.AccessRule{},
		&models.TimeZone{},
		&models.TimeSpan{},
		&models.Portal{},
		&models.Group{},

		// Relationship edges
		&models.UserAccessRule{},
		&models.UserGroup{},
		&models.GroupAccessRule{},
		&models.AccessRuleTimeZone{},
		&models.PortalAccessRule{},

		// Sync tables
		&models.EntityMapping{},
		&models.AccessLog{},
		&models.AuditLog{},
	)
	if err != nil {
		log.Printf("⚠️ Migration warning: %v\n", err)
	} else {
		log.Println("✅ Schema synchronized successfully")
	}

	// 4. Device clients
	primary := device.NewClient(cfg.Primary)
	var secondary *device.Client
	if cfg.Secondary != nil {
		secondary = device.NewClient(*cfg.Secondary)
		log.Printf("🌐 Secondary reader configured: %s", cfg.Secondary.Host)
	}

	// 5. Engine services
	hub := ws.NewHub()
	go hub.Run()

	coordinator := syncengine.NewCoordinator(db.DB, primary, secondary)
	orchestrator := syncengine.NewOrchestrator(db.DB, coordinator)
	ingestor := ingest.NewIngestor(db.DB, primary, hub)
	backups := backup.NewService(db.DB, cfg.BackupDir, cfg.LogExport.MaxRows)

	// 6. HTTP router
	router := handlers.NewRouter(db.DB, cfg, orchestrator, ingestor, backups, hub)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Channel to listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 Server starting on port %s (primary reader %s)\n", cfg.Port, cfg.Primary.Host)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sig := <-shutdown
	log.Printf("\n⚠️  Received signal: %v. Shutting down gracefully...\n", sig)

	// Create context with timeout for graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	// Drop device sessions
	if err := primary.Logout(context.Background()); err != nil {
		log.Printf("Primary reader logout error: %v", err)
	}
	if secondary != nil {
		if err := secondary.Logout(context.Background()); err != nil {
			log.Printf("Secondary reader logout error: %v", err)
		}
	}

	// Close database (this also stops embedded PostgreSQL)
	log.Println("🛑 Closing database connection...")
	if err := db.Close(); err != nil {
		log.Printf("Database close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}
