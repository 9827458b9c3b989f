package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	dserrors "github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/errors"
)

// Problem is an RFC 7807 error body.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path,omitempty"`
}

// statusFor maps an error type to an HTTP status.
func statusFor(err error) int {
	var ue *dserrors.UnifiedError
	if !errors.As(err, &ue) {
		return http.StatusInternalServerError
	}
	switch ue.Type {
	case dserrors.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case dserrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case dserrors.ErrorTypeConflict:
		return http.StatusConflict
	case dserrors.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case dserrors.ErrorTypeTimeout:
		return http.StatusGatewayTimeout
	case dserrors.ErrorTypeUnavailable, dserrors.ErrorTypeExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as a problem document. Server errors hide their
// details and are logged.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	problem := Problem{
		Type:      "about:blank",
		Title:     http.StatusText(status),
		Status:    status,
		Code:      dserrors.CodeOf(err),
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", problem.RequestID),
			zap.Error(err))
	} else {
		var ue *dserrors.UnifiedError
		if errors.As(err, &ue) {
			problem.Detail = ue.Message
			if ue.Details != "" {
				problem.Detail += ": " + ue.Details
			}
		}
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
