package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/facegate-io/facegate/internal/models"
	"github.com/facegate-io/facegate/internal/utils"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// login authenticates an admin and issues a token
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	var admin models.Admin
	if err := r.db.Where("username = ?", body.Username).First(&admin).Error; err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !utils.CheckPasswordHash(body.Password, admin.PasswordHash) {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := utils.GenerateToken(&admin, r.cfg.JWTSecret)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"admin": admin,
	})
}
