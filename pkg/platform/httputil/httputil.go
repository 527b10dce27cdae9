// Package httputil writes JSON responses and error envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "warden/pkg/domain-errors"
)

// ErrorResponse is the envelope for every non-2xx response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	// RetryAfterSeconds is set for cooldown rejections.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

// RetryAfter is implemented by errors that know when a retry may succeed.
type RetryAfter interface {
	RetryAfterSeconds() int64
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status code and writes the error envelope.
// Descriptions of internal errors are never exposed.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status := StatusFor(code)

	resp := ErrorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		resp.ErrorDescription = dErrors.MessageOf(err)
	}
	var ra RetryAfter
	if errors.As(err, &ra) {
		resp.RetryAfterSeconds = ra.RetryAfterSeconds()
	}
	WriteJSON(w, status, resp)
}

// StatusFor returns the HTTP status for a domain error code.
func StatusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAlreadyActive, dErrors.CodeAlreadyDecided:
		return http.StatusConflict
	case dErrors.CodeNotConfigured:
		return http.StatusPreconditionFailed
	case dErrors.CodeBlocked:
		return http.StatusTooManyRequests
	case dErrors.CodeDeliveryFailed:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
