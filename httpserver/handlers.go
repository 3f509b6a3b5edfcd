package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/isdmx/runbox/job"
)

const (
	invalidBodyText   = "Invalid request body."
	internalErrorText = "Internal Server Error"
)

// executeResponse is the body of every /execute response
type executeResponse struct {
	Output string `json:"output"`
}

type healthResponse struct {
	Status string `json:"status"`
	Mode   string `json:"mode"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.Server.MaxBodyBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}

	var req job.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Info("invalid request body",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusBadRequest, executeResponse{Output: invalidBodyText})
		return
	}

	result, err := s.executor.Execute(r.Context(), req)
	if err != nil {
		var validationErr *job.ValidationError
		if errors.As(err, &validationErr) {
			writeJSON(w, http.StatusBadRequest, executeResponse{Output: validationErr.Message})
			return
		}
		s.logger.Error("execution request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, executeResponse{Output: internalErrorText})
		return
	}

	writeJSON(w, http.StatusOK, executeResponse{Output: result.Output})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Mode: s.executor.StrategyName()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
