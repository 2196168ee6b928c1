package server

import (
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/ironsheep/floorplan-advisor/internal/advisor"
	"github.com/ironsheep/floorplan-advisor/internal/floorplan"
	"github.com/ironsheep/floorplan-advisor/internal/narration"
)

// Error classes mapped to HTTP status codes.
var (
	ErrValidation   = errors.New("invalid request")
	ErrNotFound     = errors.New("not found")
	ErrCollaborator = errors.New("upstream service failed")
)

// apiError carries the detail shown to clients alongside its class.
type apiError struct {
	class  error
	detail string
	cause  error
}

func (e *apiError) Error() string {
	if e.cause != nil {
		return e.detail + ": " + e.cause.Error()
	}
	return e.detail
}

func (e *apiError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.class, e.cause}
	}
	return []error{e.class}
}

func validationError(detail string, cause error) error {
	return &apiError{class: ErrValidation, detail: detail, cause: cause}
}

func notFoundError(detail string) error {
	return &apiError{class: ErrNotFound, detail: detail}
}

// collaboratorError tags advisor and narration failures. The upstream
// message is kept; API keys never appear in it.
func collaboratorError(err error) error {
	return &apiError{class: ErrCollaborator, detail: "Upstream service error", cause: err}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, narration.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrCollaborator), errors.Is(err, advisor.ErrAdvisor), errors.Is(err, narration.ErrNarration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// detailFor returns the client-facing message for err.
func detailFor(err error) string {
	var api *apiError
	switch {
	case errors.As(err, &api) && api.class == ErrCollaborator:
		return api.Error()
	case errors.As(err, &api):
		return api.detail
	case errors.Is(err, floorplan.ErrExtraction):
		return "Failed to analyze floorplan: " + err.Error()
	default:
		return "Internal Server Error"
	}
}

// fail logs err and writes the matching error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err))
	}
	writeError(w, status, detailFor(err))
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := sonic.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"detail":"failed to encode response"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
