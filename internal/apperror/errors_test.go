package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNewInternal_HidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:27017: connection refused")
	err := NewInternal(cause)

	if err.Message != GenericMessage {
		t.Errorf("expected generic message, got %q", err.Message)
	}
	if strings.Contains(err.Message, "10.0.0.3") {
		t.Error("client message must not contain the internal cause")
	}
	if !errors.Is(err, cause) {
		t.Error("expected Unwrap to expose the cause for logging")
	}
}

func TestSafeMessageAndCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"conflict", NewConflict("taken"), http.StatusConflict, "taken"},
		{"wrapped validation", fmt.Errorf("register: %w", NewValidation("bad")), http.StatusUnprocessableEntity, "bad"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, GenericMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeCode(tt.err); got != tt.wantCode {
				t.Errorf("SafeCode = %d, want %d", got, tt.wantCode)
			}
			if got := SafeMessage(tt.err); got != tt.wantMsg {
				t.Errorf("SafeMessage = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestIsNotFoundAndIsInternal(t *testing.T) {
	if !IsNotFound(fmt.Errorf("lookup: %w", NewNotFound("user not found"))) {
		t.Error("expected wrapped not-found to be detected")
	}
	if IsNotFound(errors.New("not found")) {
		t.Error("plain errors are not AppError not-found")
	}
	if !IsInternal(errors.New("db down")) {
		t.Error("plain errors are internal faults")
	}
	if !IsInternal(NewServiceUnavailable(errors.New("redis down"))) {
		t.Error("503 is an internal fault")
	}
	if IsInternal(NewUnauthorized("nope")) {
		t.Error("401 is not an internal fault")
	}
}
