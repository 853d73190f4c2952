package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/metrics"
	"github.com/campustransit/transit-server/internal/models"
	"github.com/campustransit/transit-server/internal/services"
	"github.com/campustransit/transit-server/internal/store"
)

// ReportHandler handles the report lifecycle endpoints.
type ReportHandler struct {
	reports *services.ReportService
	logger  *zap.SugaredLogger
}

// NewReportHandler creates a new report handler.
func NewReportHandler(reports *services.ReportService, logger *zap.SugaredLogger) *ReportHandler {
	return &ReportHandler{reports: reports, logger: logger}
}

// reportID parses the {id} path segment, answering 400 on malformed ids.
func reportID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid report id", "BAD_REQUEST")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /api/v1/reports?kind=&status=&route=
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	filter := store.ReportFilter{
		Kind:   models.ReportKind(r.URL.Query().Get("kind")),
		Status: r.URL.Query().Get("status"),
		Route:  r.URL.Query().Get("route"),
	}
	if filter.Kind != "" && !models.ValidKind(filter.Kind) {
		respondError(w, http.StatusBadRequest, "unknown report kind", "BAD_REQUEST")
		return
	}

	reports, err := h.reports.List(r.Context(), actor, filter)
	if err != nil {
		h.logger.Errorw("Failed to list reports", "error", err)
		respondAppError(w, err)
		return
	}
	if reports == nil {
		reports = []models.Report{}
	}
	respondJSON(w, http.StatusOK, reports)
}

// Create handles POST /api/v1/reports
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}

	var req models.CreateReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	report, err := h.reports.Create(r.Context(), actor, &req)
	if err != nil {
		respondAppError(w, err)
		return
	}

	metrics.ReportsCreated.WithLabelValues(string(report.Kind)).Inc()
	respondJSON(w, http.StatusCreated, report)
}

// Get handles GET /api/v1/reports/{id}
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	report, err := h.reports.Get(r.Context(), actor, id)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// UpdateStatus handles PATCH /api/v1/reports/{id}/status
func (h *ReportHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var req models.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	report, err := h.reports.UpdateStatus(r.Context(), id, actor, req.Status, req.ResolutionNote)
	if err != nil {
		respondAppError(w, err)
		return
	}

	metrics.StatusTransitions.Inc()
	respondJSON(w, http.StatusOK, report)
}

// UpdateFields handles PUT /api/v1/reports/{id}
func (h *ReportHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	report, err := h.reports.UpdateFields(r.Context(), id, actor, patch)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Conversation handles POST /api/v1/reports/{id}/conversation
func (h *ReportHandler) Conversation(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	var req models.ConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return
	}

	report, err := h.reports.AppendConversation(r.Context(), id, actor, &req)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Delete handles DELETE /api/v1/reports/{id}
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity(w, r)
	if !ok {
		return
	}
	id, ok := reportID(w, r)
	if !ok {
		return
	}

	if err := h.reports.Delete(r.Context(), id, actor); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
