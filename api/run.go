package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"listing_hunter/backend"
)

const maxRunBody = 64 << 10

type runRequest struct {
	DaysBack *int `json:"days_back" validate:"omitempty,min=1,max=365"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Backend.Configured() {
		writeError(w, http.StatusInternalServerError, backend.ErrNotConfigured.Error())
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRunBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	body := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		var req runRequest
		if err := json.Unmarshal(raw, &req); err != nil || s.validate.Struct(req) != nil {
			writeError(w, http.StatusBadRequest, "days_back must be an integer between 1 and 365")
			return
		}
	}

	resp, err := s.deps.Backend.Trigger(r.Context(), body)
	if err != nil {
		s.writeBackendError(w, "trigger", err)
		return
	}
	writeJSON(w, resp.StatusCode, resp.Body)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	if !s.deps.Backend.Configured() {
		writeError(w, http.StatusInternalServerError, backend.ErrNotConfigured.Error())
		return
	}

	resp, err := s.deps.Backend.Status(r.Context())
	if err != nil {
		s.writeBackendError(w, "status", err)
		return
	}
	writeJSON(w, resp.StatusCode, resp.Body)
}

func (s *Server) writeBackendError(w http.ResponseWriter, op string, err error) {
	log.Printf("Run proxy: %s failed: %v", op, err)
	switch {
	case errors.Is(err, backend.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, backend.ErrNotConfigured.Error())
	case errors.Is(err, backend.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, backend.ErrInvalidResponse):
		writeError(w, http.StatusBadGateway, backend.ErrInvalidResponse.Error())
	default:
		writeError(w, http.StatusBadGateway, backend.ErrUnreachable.Error())
	}
}
