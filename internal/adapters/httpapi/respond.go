package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mikey/teethanalyzer/internal/core"
	"go.uber.org/zap"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		loggerFrom(r.Context(), s.logger).Warn("Failed to write response", zap.Error(err))
	}
}

// writeError maps err to a status code. Server side failures are logged with
// the request context and reported with a short message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := core.StatusCode(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		status = http.StatusRequestEntityTooLarge
	}

	logger := loggerFrom(r.Context(), s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error(action+" failed", zap.Error(err))
	} else {
		logger.Info(action+" rejected", zap.Int("status", status), zap.Error(err))
	}

	detail := err.Error()
	if status == http.StatusInternalServerError {
		detail = action + " failed: " + err.Error()
	}
	s.writeJSON(w, r, status, errorResponse{Detail: detail})
}
