package server

import (
	"net/http"

	"samu/dispatch/internal/dispatch"
)

type RecordGpsPingRequest struct {
	Latitude  float64  `json:"latitude" validate:"latitude"`
	Longitude float64  `json:"longitude" validate:"longitude"`
	SpeedKMH  *float64 `json:"speed_kmh" validate:"omitempty,min=0"`
	AltitudeM *float64 `json:"altitude_m"`
	AccuracyM *float64 `json:"accuracy_m" validate:"omitempty,min=0"`
	ClientRef string   `json:"client_ref" validate:"omitempty,uuid4"`
}

type RecordFeedbackRequest struct {
	Rating           int32  `json:"rating" validate:"required"`
	Comment          string `json:"comment"`
	PatientCondition string `json:"patient_condition"`
	ClientRef        string `json:"client_ref" validate:"omitempty,uuid4"`
}

// handleRecordGpsPing godoc
// @Title Record GPS ping
// @Description Appends an immutable telemetry breadcrumb to a dispatch.
// @Resource Telemetry
// @Accept json
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Param request body RecordGpsPingRequest true "Ping payload"
// @Success 201 {object} GpsPingResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/dispatches/{dispatchID}/gps [post]
func (s *Server) handleRecordGpsPing(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	var req RecordGpsPingRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	ping, err := s.orc.RecordPing(r.Context(), id, dispatch.PingInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		SpeedKMH:  req.SpeedKMH,
		AltitudeM: req.AltitudeM,
		AccuracyM: req.AccuracyM,
		ClientRef: req.ClientRef,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, mapPing(ping))
}

// handleListGpsPings godoc
// @Title List GPS pings
// @Description Returns all breadcrumbs for a dispatch in recorded order.
// @Resource Telemetry
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Success 200 {array} GpsPingResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/dispatches/{dispatchID}/gps [get]
func (s *Server) handleListGpsPings(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	pings, err := s.orc.Pings(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]GpsPingResponse, 0, len(pings))
	for _, p := range pings {
		resp = append(resp, mapPing(p))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleRecordFeedback godoc
// @Title Record feedback
// @Description Stores an operator rating for a dispatch. Ratings outside [1,5] are rejected before any write.
// @Resource Telemetry
// @Accept json
// @Produce json
// @Param dispatchID path int true "Dispatch ID"
// @Param request body RecordFeedbackRequest true "Feedback payload"
// @Success 201 {object} FeedbackResponse
// @Failure 400 {object} APIError
// @Failure 404 {object} APIError
// @Route /v1/dispatches/{dispatchID}/feedback [post]
func (s *Server) handleRecordFeedback(w http.ResponseWriter, r *http.Request) {
	id, err := s.parseIDParam(r, "dispatchID")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidDispatchID, err.Error())
		return
	}

	var req RecordFeedbackRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	fb, err := s.orc.RecordFeedback(r.Context(), id, dispatch.FeedbackInput{
		Rating:           req.Rating,
		Comment:          req.Comment,
		PatientCondition: req.PatientCondition,
		ClientRef:        req.ClientRef,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, mapFeedback(fb))
}
