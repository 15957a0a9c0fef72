package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	iderr "github.com/whatsub/identity-core/pkg/errors"
	"github.com/whatsub/identity-core/pkg/guard"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps the error onto its HTTP status and JSON body, logging
// server faults at ERROR and client rejections at DEBUG.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := iderr.AsError(err); ok && e.HTTPStatus() >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	} else {
		s.logger.LogAttrs(r.Context(), slog.LevelDebug, "request rejected",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	guard.WriteError(w, err)
}
