package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/services"
)

// AuthHandler handles registration and login.
type AuthHandler struct {
	auth   *services.AuthService
	logger *zap.SugaredLogger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(auth *services.AuthService, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	user, err := h.auth.Register(r.Context(), &req)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	resp, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
