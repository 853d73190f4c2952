package services

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/blob"
)

func newAttachmentService() *AttachmentService {
	return NewAttachmentService(blob.NewMemory(), zap.NewNop().Sugar())
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":                    "photo.jpg",
		"my photo (1).jpg":             "myphoto1.jpg",
		"../../etc/passwd":             "....etcpasswd",
		`evil"; rm -rf x`:              "evilrm-rfx",
		"résumé.pdf":                   "rsum.pdf",
		"Bus_Report-2026.final.pdf":    "Bus_Report-2026.final.pdf",
		"\r\nContent-Length: 0\r\n":    "Content-Length0",
		"":                             "file",
		"   ":                          "file",
		"..":                           "file",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFilename(in), "input %q", in)
	}
}

func TestUploadFetchRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newAttachmentService()

	data := []byte("jpeg bytes here")
	up, err := svc.Upload(ctx, data, "bus stop (front).jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "busstopfront.jpg", up.SanitizedName)
	assert.Equal(t, "/api/v1/attachments/"+up.ID.String(), up.URL)

	obj, err := svc.Fetch(ctx, up.ID)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, obj.Data))
	assert.Equal(t, "image/jpeg", obj.MimeType)
	assert.Equal(t, "busstopfront.jpg", obj.Name)
}

func TestUploadSizeLimit(t *testing.T) {
	ctx := context.Background()
	svc := newAttachmentService()

	_, err := svc.Upload(ctx, make([]byte, MaxAttachmentSize+1), "big.bin", "application/octet-stream")
	assert.ErrorIs(t, err, apperrors.ErrPayloadTooLarge)

	// Exactly at the cap is accepted.
	_, err = svc.Upload(ctx, make([]byte, MaxAttachmentSize), "fits.bin", "application/octet-stream")
	assert.NoError(t, err)
}

func TestUploadEmptyRejected(t *testing.T) {
	ctx := context.Background()
	svc := newAttachmentService()

	_, err := svc.Upload(ctx, nil, "empty.bin", "")
	var ve *apperrors.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestFetchUnknownID(t *testing.T) {
	ctx := context.Background()
	svc := newAttachmentService()

	_, err := svc.Fetch(ctx, newID())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUploadDefaultsMimeType(t *testing.T) {
	ctx := context.Background()
	svc := newAttachmentService()

	up, err := svc.Upload(ctx, []byte("x"), "a.bin", "")
	require.NoError(t, err)
	obj, err := svc.Fetch(ctx, up.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", obj.MimeType)
}
