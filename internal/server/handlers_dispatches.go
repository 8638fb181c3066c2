package server

import (
	"net/http"
	"time"

	"samu/dispatch/internal/dispatch"
	"samu/dispatch/internal/prediction"
)

type CreateDispatchRequest struct {
	RequestID        int64   `json:"request_id" validate:"required,min=1"`
	IncidentType     string  `json:"incident_type" validate:"required"`
	Priority         string  `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Notes            string  `json:"notes"`
	OriginLat        float64 `json:"origin_lat" validate:"latitude"`
	OriginLng        float64 `json:"origin_lng" validate:"longitude"`
	OriginAddress    string  `json:"origin_address"`
	DestLat          float64 `json:"dest_lat" validate:"latitude"`
	DestLng          float64 `json:"dest_lng" validate:"longitude"`
	DestAddress      string  `json:"dest_address"`
	DistanceKM       float64 `json:"distance_km" validate:"omitempty,min=0"`
	EstimatedMinutes int32   `json:"estimated_minutes" validate:"omitempty,min=0"`
	Extra            RawJSON `json:"extra"`
}

type UpdateDispatchStatusRequest struct {
	State        string `json:"state" validate:"required,oneof=requested assigned en_route on_scene completed cancelled"`
	AmbulanceID  *int64 `json:"ambulance_id" validate:"omitempty,min=1"`
	CancelReason string `json:"cancel_reason"`
}

type AssignDispatchRequest struct {
	AmbulanceID   int64  `json:"ambulance_id" validate:"required,min=1"`
	SeverityLevel *int32 `json:"severity_level" validate:"omitempty,min=1,max=5"`
}

// handleCreateDispatch godoc
// @Title Create dispatch
// @Description Registers a new dispatch record in the requested state.
// @Resource Dispatches
// @Accept json
// @Produce json
// @Param request body CreateDispatchRequest true "Dispatch payload"
// @Success 201 {object} DispatchResponse
// @Failure 400 {object} APIError
// @Failure 500 {object} APIError
// @Route /v1/dispatches [post]
func (s *Server) handleCreateDispatch(w http.ResponseWriter, r *http.Request) {
	var req CreateDispatchRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	created, err := s.orc.Create(r.Context(), dispatch.NewDispatch{
		RequestID:        req.RequestID,
		IncidentType:     req.IncidentType,
		Priority:         dispatch.Priority(req.Priority),
		Notes:            req.Notes,
		Origin:           dispatch.GeoPoint{Latitude: req.OriginLat, Longitude: req.OriginLng, Address: req.OriginAddress},
		Destination:      dispatch.GeoPoint{Latitude: req.DestLat, Longitude: req.DestLng, Address: req.DestAddress},
		DistanceKM:       req.DistanceKM,
		EstimatedMinutes: req.EstimatedMinutes,
		Extra:            req.Extra,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, mapDispatch(created))
}

// handleGetDispatch godoc
// @Title Get dispatch
// @Description Returns a single dispatch record.
// @Resource Dispatches
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/dispatches/{dispatchID} [get]
func (s *Server) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	d, err := s.orc.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, mapDispatch(d))
}

// handleListDispatches godoc
// @Title List dispatches
// @Description Lists dispatches filtered by state, priority and activity.
// @Resource Dispatches
// @Produce json
// @Param state query string false "Lifecycle state"
// @Param priority query string false "Priority"
// @Param active query bool false "Only non-terminal dispatches"
// @Param limit query int false "Page size"
// @Success 200 {array} DispatchResponse
// @Failure 500 {object} APIError
// @Route /v1/dispatches [get]
func (s *Server) handleListDispatches(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := dispatch.ListFilter{
		State:      dispatch.State(query.Get("state")),
		Priority:   dispatch.Priority(query.Get("priority")),
		ActiveOnly: query.Get("active") == "true",
		Limit:      s.paginate(r, 50),
	}
	if filter.State != "" && !filter.State.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid state filter", string(filter.State))
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		s.writeError(w, http.StatusBadRequest, "invalid priority filter", string(filter.Priority))
		return
	}

	rows, err := s.orc.List(r.Context(), filter)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]DispatchResponse, 0, len(rows))
	for _, d := range rows {
		resp = append(resp, mapDispatch(d))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListRecentDispatches godoc
// @Title List recent dispatches
// @Description Lists dispatches requested within the given window (default 24h).
// @Resource Dispatches
// @Produce json
// @Param hours query int false "Window size in hours"
// @Param limit query int false "Page size"
// @Success 200 {array} DispatchResponse
// @Failure 500 {object} APIError
// @Route /v1/dispatches/recent [get]
func (s *Server) handleListRecentDispatches(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if h := r.URL.Query().Get("hours"); h != "" {
		if parsed, err := time.ParseDuration(h + "h"); err == nil && parsed > 0 {
			window = parsed
		}
	}

	rows, err := s.orc.Recent(r.Context(), window, s.paginate(r, 50))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]DispatchResponse, 0, len(rows))
	for _, d := range rows {
		resp = append(resp, mapDispatch(d))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleUpdateDispatchStatus godoc
// @Title Update dispatch status
// @Description Moves a dispatch through its lifecycle. Illegal transitions and lost races return 409.
// @Resource Dispatches
// @Accept json
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Param request body UpdateDispatchStatusRequest true "Status payload"
// @Success 200 {object} DispatchResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/dispatches/{dispatchID}/status [patch]
func (s *Server) handleUpdateDispatchStatus(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	var req UpdateDispatchStatusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	updated, err := s.orc.Transition(r.Context(), id, dispatch.State(req.State), dispatch.TransitionOptions{
		AmbulanceID:  req.AmbulanceID,
		CancelReason: req.CancelReason,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	observeTransition(updated)
	s.writeJSON(w, http.StatusOK, mapDispatch(updated))
}

// handleAssignDispatch godoc
// @Title Assign ambulance
// @Description Explicitly assigns or reassigns an ambulance. Equipment-class mismatches come back as a warning.
// @Resource Dispatches
// @Accept json
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Param request body AssignDispatchRequest true "Assignment payload"
// @Success 200 {object} AssignmentResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Failure 409 {object} APIError
// @Route /v1/dispatches/{dispatchID}/assign [post]
func (s *Server) handleAssignDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	var req AssignDispatchRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	updated, warning, err := s.orc.Assign(r.Context(), id, req.AmbulanceID, req.SeverityLevel)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AssignmentResponse{Dispatch: mapDispatch(updated), Warning: warning})
}

// handleOptimizeDispatch godoc
// @Title Request optimization
// @Description Asks the ML service for the best ambulance. Degrades to the current assignment when the service is unreachable.
// @Resource Dispatches
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Success 200 {object} SuggestionResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/dispatches/{dispatchID}/optimize [post]
func (s *Server) handleOptimizeDispatch(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	suggestion, err := s.orc.Optimize(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if suggestion.Degraded {
		optimizationFallbacksTotal.Inc()
	}

	s.writeJSON(w, http.StatusOK, SuggestionResponse{
		DispatchID:    suggestion.DispatchID,
		AmbulanceID:   suggestion.AmbulanceID,
		Confidence:    suggestion.Confidence,
		ConfidencePct: prediction.ConfidencePercent(suggestion.Confidence),
		Reason:        suggestion.Reason,
		Reassignment:  suggestion.Reassignment,
		Degraded:      suggestion.Degraded,
	})
}
