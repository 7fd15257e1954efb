package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"iorganise/internal/auth"
	"iorganise/internal/filestore"
	"iorganise/internal/manager"
	"iorganise/internal/pipeline"
	"iorganise/internal/store"
	"iorganise/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// badRequest is a validation failure.
type badRequest struct{ msg string }

func (e badRequest) Error() string   { return e.msg }
func (e badRequest) StatusCode() int { return http.StatusBadRequest }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var he HTTPError
	switch {
	case errors.As(err, &he):
		return he.StatusCode()
	case errors.Is(err, store.ErrNotFound), errors.Is(err, filestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case manager.IsTooBusy(err):
		return http.StatusTooManyRequests
	case manager.IsModelLoad(err), manager.IsDependencyUnavailable(err),
		errors.Is(err, manager.ErrClosed), errors.Is(err, pipeline.ErrRunnerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// writeError renders err with its mapped status and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("registry")
	}
	if status >= 500 && requestLogLevel(r) >= LevelError {
		if zlog != nil {
			z := zlog.Error().Int("status", status).Str("path", r.URL.Path)
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Err(err).Msg("request failed")
		} else {
			log.Printf("request failed path=%s status=%d err=%v", r.URL.Path, status, err)
		}
	}
	writeJSONError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
