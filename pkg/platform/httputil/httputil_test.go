package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "warden/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid input"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "bad_request" {
			t.Fatalf("expected error code bad_request, got %q", body["error"])
		}
		if body["error_description"] != "invalid input" {
			t.Fatalf("expected error_description to be returned for bad request")
		}
	})
}

type retryErr struct{ secs int64 }

func (e retryErr) Error() string            { return "retry later" }
func (e retryErr) RetryAfterSeconds() int64 { return e.secs }

func TestWriteError_WorkflowCodes(t *testing.T) {
	tests := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeNotConfigured, http.StatusPreconditionFailed},
		{dErrors.CodeAlreadyActive, http.StatusConflict},
		{dErrors.CodeAlreadyDecided, http.StatusConflict},
		{dErrors.CodeBlocked, http.StatusTooManyRequests},
		{dErrors.CodeDeliveryFailed, http.StatusBadGateway},
		{dErrors.CodePersistenceFailed, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tt.code, "msg"))
			if w.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func TestWriteError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	err := dErrors.Wrap(retryErr{secs: 14400}, dErrors.CodeBlocked, "You can re-apply in 4h 0m")
	WriteError(w, fmt.Errorf("start: %w", err))

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error != "blocked" || body.RetryAfterSeconds != 14400 {
		t.Fatalf("unexpected body %+v", body)
	}
	if body.ErrorDescription != "You can re-apply in 4h 0m" {
		t.Fatalf("unexpected description %q", body.ErrorDescription)
	}
}
