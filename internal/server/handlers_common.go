package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"samu/dispatch/internal/dispatch"
	"samu/dispatch/internal/prediction"
)

type APIError struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

const (
	errInvalidPayload     = "invalid payload"
	errInvalidDispatchID  = "invalid dispatch id"
	errInvalidAmbulanceID = "invalid ambulance id"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string, details interface{}) {
	s.writeJSON(w, status, APIError{Error: message, Details: details})
}

// writeDomainError maps the core error taxonomy onto HTTP statuses. Only the
// optimization path absorbs prediction failures; everything else surfaces.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case dispatch.IsValidation(err):
		s.writeError(w, http.StatusBadRequest, "validation failed", err.Error())
	case dispatch.IsInvalidTransition(err):
		s.writeError(w, http.StatusConflict, "invalid transition", err.Error())
	case errors.Is(err, dispatch.ErrStaleState):
		s.writeError(w, http.StatusConflict, "stale state, retry with fresh state", err.Error())
	case errors.Is(err, dispatch.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, prediction.ErrUnavailable):
		s.writeError(w, http.StatusBadGateway, "prediction service unavailable", err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

func (s *Server) decodeAndValidate(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func (s *Server) parseIDParam(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return 0, errors.New("missing id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("id must be a positive integer")
	}
	return id, nil
}

func optionalTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func (s *Server) paginate(r *http.Request, defaultLimit int32) int32 {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.ParseInt(l, 10, 32); err == nil && parsed > 0 {
			limit = int32(parsed)
		}
	}
	return limit
}
