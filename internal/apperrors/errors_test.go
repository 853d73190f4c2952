package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapToHTTPIsTotal(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{Validation("route", "busNo"), http.StatusBadRequest, "VALIDATION_FAILED"},
		{ErrUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED"},
		{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
		{ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
		{ErrReportClosed, http.StatusConflict, "REPORT_CLOSED"},
		{ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{ErrStoreUnavailable, http.StatusInternalServerError, "STORE_UNAVAILABLE"},
		{errors.New("something unexpected"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		httpErr := MapToHTTP(tc.err)
		assert.Equal(t, tc.status, httpErr.StatusCode, "status for %v", tc.err)
		assert.Equal(t, tc.code, httpErr.Code, "code for %v", tc.err)
	}
}

func TestWrappedErrorsStillMap(t *testing.T) {
	wrapped := fmt.Errorf("%w: Pending -> Pending", ErrInvalidTransition)
	assert.Equal(t, http.StatusConflict, MapToHTTP(wrapped).StatusCode)

	infra := StoreFailure("insert report", errors.New("connection refused"))
	httpErr := MapToHTTP(infra)
	assert.Equal(t, http.StatusInternalServerError, httpErr.StatusCode)
	// The cause never leaks into the client-facing message.
	assert.NotContains(t, httpErr.Message, "connection refused")
}

func TestValidationErrorListsFields(t *testing.T) {
	err := Validation("item", "description")
	assert.Contains(t, err.Error(), "item")
	assert.Contains(t, err.Error(), "description")

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{"item", "description"}, ve.Fields)
}
