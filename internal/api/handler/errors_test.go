package handler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/timmy/memebot/internal/service"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not registered", service.ErrNotRegistered, http.StatusForbidden, "not_registered"},
		{"already registered", service.ErrAlreadyRegistered, http.StatusConflict, "already_registered"},
		{"busy", service.ErrLockBusy, http.StatusConflict, "lock_busy"},
		{"stale", service.ErrLockStale, http.StatusConflict, "lock_stale"},
		{"no candidate", service.ErrNoCandidateFound, http.StatusBadGateway, "no_candidate"},
		{"exhausted wrapped", fmt.Errorf("x: %w", service.ErrExternalFetchExhausted), http.StatusBadGateway, "fetch_exhausted"},
		{"closed", service.ErrDispatcherClosed, http.StatusServiceUnavailable, "shutting_down"},
		{"other", errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := statusFor(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("statusFor(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}
