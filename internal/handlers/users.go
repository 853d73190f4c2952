package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/export"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/services"
)

// UserHandler serves the admin user directory: listing, patching,
// deletion, bulk import and export.
type UserHandler struct {
	directory *services.DirectoryService
	logger    *zap.SugaredLogger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(directory *services.DirectoryService, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{directory: directory, logger: logger}
}

// List handles GET /api/v1/users. Password hashes are excluded by the
// model's serialization, never by handler filtering.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.Users(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to list users", "error", err)
		respondAppError(w, err)
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// Update handles PATCH /api/v1/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id", "BAD_REQUEST")
		return
	}

	var patch services.UserPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	user, err := h.directory.UpdateUser(r.Context(), actor, id, &patch)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// Delete handles DELETE /api/v1/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id", "BAD_REQUEST")
		return
	}

	if err := h.directory.DeleteUser(r.Context(), actor, id); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Import handles POST /api/v1/users/import with partial-success semantics.
func (h *UserHandler) Import(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var rows []models.ImportUserRow
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	result, err := h.directory.ImportUsers(r.Context(), actor, rows)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Export handles GET /api/v1/users/export?format=csv|xlsx (default csv).
func (h *UserHandler) Export(w http.ResponseWriter, r *http.Request) {
	users, err := h.directory.Users(r.Context())
	if err != nil {
		respondAppError(w, err)
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "csv":
		data, err := export.UsersCSV(users)
		if err != nil {
			h.logger.Errorw("CSV export failed", "error", err)
			respondAppError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case "xlsx":
		data, err := export.UsersXLSX(users)
		if err != nil {
			h.logger.Errorw("XLSX export failed", "error", err)
			respondAppError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="users.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	default:
		respondError(w, http.StatusBadRequest, "unknown export format", "BAD_REQUEST")
	}
}
