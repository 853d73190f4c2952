package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/services"
)

// AttachmentHandler handles attachment upload and download.
type AttachmentHandler struct {
	attachments *services.AttachmentService
	logger      *zap.SugaredLogger
}

// NewAttachmentHandler creates a new attachment handler.
func NewAttachmentHandler(attachments *services.AttachmentService, logger *zap.SugaredLogger) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, logger: logger}
}

// Upload handles POST /api/v1/attachments (multipart, single "file" field).
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// One extra MiB of form overhead on top of the attachment cap.
	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAttachmentSize+1<<20)
	if err := r.ParseMultipartForm(services.MaxAttachmentSize); err != nil {
		respondAppError(w, apperrors.ErrPayloadTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file field", "BAD_REQUEST")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, services.MaxAttachmentSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable upload", "BAD_REQUEST")
		return
	}

	uploaded, err := h.attachments.Upload(r.Context(), data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		respondAppError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, uploaded)
}

// Download handles GET /api/v1/attachments/{id}. The content disposition
// carries only the sanitized name, never user-supplied bytes.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid attachment id", "BAD_REQUEST")
		return
	}

	obj, err := h.attachments.Fetch(r.Context(), id)
	if err != nil {
		respondAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", obj.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", obj.Name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(obj.Data)
}
