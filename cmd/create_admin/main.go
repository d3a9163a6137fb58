package main

import (
	"flag"
	"log"

	"github.com/facegate-io/facegate/internal/config"
	"github.com/facegate-io/facegate/internal/database"
	"github.com/facegate-io/facegate/internal/models"
	"github.com/facegate-io/facegate/internal/utils"
)

// Bootstraps the first admin account. Safe to re-run: an existing username
// gets its password reset instead of a duplicate row.
func main() {
	username := flag.String("username", "admin", "admin username")
	password := flag.String("password", "", "admin password (required)")
	role := flag.String("role", "admin", "admin role")
	flag.Parse()

	if *password == "" {
		log.Fatal("password is required: -password <value>")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.Admin{}); err != nil {
		log.Fatalf("Failed to migrate admin table: %v", err)
	}

	hash, err := utils.HashPassword(*password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	var admin models.Admin
	err = db.Where("username = ?", *username).First(&admin).Error
	if err == nil {
		admin.PasswordHash = hash
		admin.Role = *role
		if err := db.Save(&admin).Error; err != nil {
			log.Fatalf("Failed to update admin: %v", err)
		}
		log.Printf("✅ Admin %q password updated", *username)
		return
	}

	admin = models.Admin{Username: *username, PasswordHash: hash, Role: *role}
	if err := db.Create(&admin).Error; err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.Printf("✅ Admin %q created (id %d)", *username, admin.ID)
}
