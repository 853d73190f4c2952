package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/services"
)

// DirectoryHandler serves routes and buses.
type DirectoryHandler struct {
	directory *services.DirectoryService
	logger    *zap.SugaredLogger
}

// NewDirectoryHandler creates a new directory handler.
func NewDirectoryHandler(directory *services.DirectoryService, logger *zap.SugaredLogger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, logger: logger}
}

// Routes handles GET /api/v1/routes
func (h *DirectoryHandler) Routes(w http.ResponseWriter, r *http.Request) {
	routes, err := h.directory.Routes(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to list routes", "error", err)
		respondAppError(w, err)
		return
	}
	if routes == nil {
		routes = []models.BusRoute{}
	}
	respondJSON(w, http.StatusOK, routes)
}

// Buses handles GET /api/v1/buses
func (h *DirectoryHandler) Buses(w http.ResponseWriter, r *http.Request) {
	buses, err := h.directory.Buses(r.Context())
	if err != nil {
		h.logger.Errorw("Failed to list buses", "error", err)
		respondAppError(w, err)
		return
	}
	if buses == nil {
		buses = []models.Bus{}
	}
	respondJSON(w, http.StatusOK, buses)
}

// UpsertRoute handles POST /api/v1/routes and PUT /api/v1/routes/{name}
func (h *DirectoryHandler) UpsertRoute(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var route models.BusRoute
	if err := json.NewDecoder(r.Body).Decode(&route); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if name := chi.URLParam(r, "name"); name != "" {
		route.Name = name
	}

	if err := h.directory.UpsertRoute(r.Context(), actor, &route); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, route)
}

// UpsertBus handles POST /api/v1/buses and PUT /api/v1/buses/{busNo}
func (h *DirectoryHandler) UpsertBus(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var bus models.Bus
	if err := json.NewDecoder(r.Body).Decode(&bus); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}
	if busNo := chi.URLParam(r, "busNo"); busNo != "" {
		bus.BusNo = busNo
	}

	if err := h.directory.UpsertBus(r.Context(), actor, &bus); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, bus)
}
