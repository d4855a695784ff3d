package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/memebot/internal/api/middleware"
	"github.com/timmy/memebot/internal/service"
)

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps service errors to HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotRegistered):
		return http.StatusForbidden, "not_registered"
	case errors.Is(err, service.ErrAlreadyRegistered):
		return http.StatusConflict, "already_registered"
	case errors.Is(err, service.ErrLockBusy):
		return http.StatusConflict, "lock_busy"
	case errors.Is(err, service.ErrLockStale):
		return http.StatusConflict, "lock_stale"
	case errors.Is(err, service.ErrNoCandidateFound):
		return http.StatusBadGateway, "no_candidate"
	case errors.Is(err, service.ErrExternalFetchExhausted):
		return http.StatusBadGateway, "fetch_exhausted"
	case errors.Is(err, service.ErrDispatcherClosed):
		return http.StatusServiceUnavailable, "shutting_down"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// respondError writes err as JSON. Internal errors are logged and their
// details are not exposed.
func respondError(c *gin.Context, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		msg = "internal error"
	}
	c.JSON(status, errorResponse{Error: msg, Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "bad_request"})
}
