package services

import (
	"context"
	"fmt"
	"regexp"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/blob"
	"github.com/campustransit/transit-server/internal/models"
)

// MaxAttachmentSize caps uploads at 10 MiB.
const MaxAttachmentSize = 10 << 20

// unsafeNameChars matches everything outside the filename allow-list.
// Stripping rather than escaping means a stored name can never smuggle
// header or path syntax.
var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// SanitizeFilename strips disallowed characters from a declared filename,
// falling back to "file" if nothing survives.
func SanitizeFilename(name string) string {
	clean := unsafeNameChars.ReplaceAllString(name, "")
	if clean == "" || clean == "." || clean == ".." {
		return "file"
	}
	return clean
}

// AttachmentService registers uploaded bytes with the blob collaborator
// and serves them back by opaque id. It never stores or serves a file
// under its user-supplied name.
type AttachmentService struct {
	blobs  blob.Store
	logger *zap.SugaredLogger
}

// NewAttachmentService creates a new attachment service.
func NewAttachmentService(blobs blob.Store, logger *zap.SugaredLogger) *AttachmentService {
	return &AttachmentService{blobs: blobs, logger: logger}
}

// Upload stores the bytes and metadata under a fresh id and returns the
// retrieval reference. Uploads over MaxAttachmentSize are rejected.
func (s *AttachmentService) Upload(ctx context.Context, data []byte, declaredName, mimeType string) (*models.UploadedAttachment, error) {
	if len(data) == 0 {
		return nil, apperrors.Validation("file")
	}
	if len(data) > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: limit %d bytes", apperrors.ErrPayloadTooLarge, MaxAttachmentSize)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	id := uuid.New()
	name := SanitizeFilename(declaredName)
	if err := s.blobs.Put(ctx, id, &blob.Object{Data: data, MimeType: mimeType, Name: name}); err != nil {
		return nil, err
	}

	s.logger.Infow("Attachment stored", "id", id, "size", len(data), "mime", mimeType)
	return &models.UploadedAttachment{
		ID:            id,
		URL:           "/api/v1/attachments/" + id.String(),
		SanitizedName: name,
	}, nil
}

// Fetch returns the stored bytes and serving metadata for an id.
func (s *AttachmentService) Fetch(ctx context.Context, id uuid.UUID) (*blob.Object, error) {
	obj, err := s.blobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.MimeType == "" {
		obj.MimeType = "application/octet-stream"
	}
	if obj.Name == "" {
		obj.Name = "file"
	}
	return obj, nil
}
