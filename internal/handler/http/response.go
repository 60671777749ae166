package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"shortlinks/internal/domain"
	"shortlinks/pkg/validator"

	"github.com/getsentry/sentry-go"
)

// Response helpers for consistent API responses

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// SuccessResponse represents a successful response
type SuccessResponse struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	// Headers are already sent; an encoding failure can only be dropped here
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: message,
	})
}

// respondSuccess sends a success response
func respondSuccess(w http.ResponseWriter, statusCode int, data any, message string) {
	respondJSON(w, statusCode, SuccessResponse{
		Data:    data,
		Message: message,
	})
}

// errorStatus maps service errors to an HTTP status, a stable code and a message
func errorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidFormat):
		return http.StatusBadRequest, "invalid_short_code", "Invalid short code. Use 4-10 letters or digits"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, validator.ErrInvalid),
		errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrEmptyURL):
		return http.StatusBadRequest, "validation_failed", err.Error()
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrForbidden):
		// Someone else's link is indistinguishable from a missing one
		return http.StatusNotFound, "not_found", "Link not found"
	case errors.Is(err, domain.ErrCodeTaken):
		return http.StatusConflict, "short_code_taken", "This short code is already in use"
	case errors.Is(err, domain.ErrGone):
		return http.StatusGone, "gone", "Link is no longer active"
	case errors.Is(err, domain.ErrNamespaceExhausted):
		return http.StatusServiceUnavailable, "namespace_exhausted", "Could not allocate a short code, try again"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage_unavailable", "Service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal_error", "Internal server error"
	}
}

// respondServiceError logs the error, reports server-side failures to Sentry
// when it is enabled, and writes the mapped response
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := errorStatus(err)
	log := h.logger.WithContext(r.Context())

	if status >= http.StatusInternalServerError {
		log.Error("Request failed", "path", r.URL.Path, "status", status, "error", err)
		if hub := sentry.GetHubFromContext(r.Context()); hub != nil {
			hub.CaptureException(err)
		}
	} else {
		log.Debug("Request rejected", "path", r.URL.Path, "status", status, "error", err)
	}

	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
