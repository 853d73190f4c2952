// Package handlers contains HTTP request handlers for the transit portal
// API. Handlers parse requests, call services, and return JSON responses;
// every service error is translated through the apperrors mapping.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/middleware"
	"github.com/campustransit/transit-server/internal/services"
)

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: translate a service error into its HTTP response.
func respondAppError(w http.ResponseWriter, err error) {
	httpErr := apperrors.MapToHTTP(err)
	respondJSON(w, httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Helper: respond with an ad hoc client error.
func respondError(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, apperrors.ErrorResponse{Error: message, Code: code})
}

// identity pulls the authenticated caller from the request context,
// answering 401 itself when the auth middleware did not run.
func identity(w http.ResponseWriter, r *http.Request) (services.Identity, bool) {
	id, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		respondAppError(w, apperrors.ErrUnauthenticated)
	}
	return id, ok
}
