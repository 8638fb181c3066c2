package server

import (
	"net/http"

	"samu/dispatch/internal/prediction"
)

type PredictSeverityRequest struct {
	Description string `json:"description" validate:"required"`
	PatientAge  *int32 `json:"patient_age" validate:"omitempty,min=0,max=130"`
}

type PredictETARequest struct {
	OriginLat    float64 `json:"origin_lat" validate:"latitude"`
	OriginLng    float64 `json:"origin_lng" validate:"longitude"`
	DestLat      float64 `json:"dest_lat" validate:"latitude"`
	DestLng      float64 `json:"dest_lng" validate:"longitude"`
	TrafficLevel *int32  `json:"traffic_level" validate:"omitempty,min=0,max=10"`
}

// handlePredictSeverity godoc
// @Title Predict severity
// @Description Classifies an incident description and enriches the raw level for display. Service failures propagate; there is no safe fallback for a point prediction.
// @Resource Predictions
// @Accept json
// @Produce json
// @Param request body PredictSeverityRequest true "Severity payload"
// @Success 200 {object} SeverityResponse
// @Failure 400 {object} APIError
// @Failure 502 {object} APIError
// @Route /v1/predictions/severity [post]
func (s *Server) handlePredictSeverity(w http.ResponseWriter, r *http.Request) {
	var req PredictSeverityRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	result, err := s.gateway.Severity(r.Context(), prediction.SeverityRequest{
		Description: req.Description,
		PatientAge:  req.PatientAge,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	category, err := prediction.CategorizeSeverity(result.Level)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "prediction service returned an unknown severity level", err.Error())
		return
	}
	required, err := prediction.RequiredAmbulance(result.Level)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "prediction service returned an unknown severity level", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, SeverityResponse{
		Level:          category.Level,
		Label:          category.Label,
		Description:    category.Description,
		Color:          category.Color,
		RequiredClass:  string(required),
		Confidence:     result.Confidence,
		ConfidencePct:  prediction.ConfidencePercent(result.Confidence),
		Recommendation: result.Recommendation,
	})
}

// handlePredictETA godoc
// @Title Predict ETA
// @Description Estimates travel time between two coordinates and renders the bounds as a range.
// @Resource Predictions
// @Accept json
// @Produce json
// @Param request body PredictETARequest true "ETA payload"
// @Success 200 {object} ETAResponse
// @Failure 400 {object} APIError
// @Failure 502 {object} APIError
// @Route /v1/predictions/eta [post]
func (s *Server) handlePredictETA(w http.ResponseWriter, r *http.Request) {
	var req PredictETARequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, errInvalidPayload, err.Error())
		return
	}

	result, err := s.gateway.ETA(r.Context(), prediction.ETARequest{
		OriginLat:    req.OriginLat,
		OriginLon:    req.OriginLng,
		DestLat:      req.DestLat,
		DestLon:      req.DestLng,
		TrafficLevel: req.TrafficLevel,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	enriched := prediction.FormatETA(result)
	s.writeJSON(w, http.StatusOK, ETAResponse{
		EstimateMinutes: enriched.EstimateMinutes,
		Range:           enriched.Range,
		Confidence:      enriched.Confidence,
		ConfidencePct:   enriched.ConfidencePct,
	})
}

// handleModelsHealth godoc
// @Title Models health
// @Description Aggregates per-model load flags into an overall healthy/degraded status.
// @Resource Predictions
// @Produce json
// @Success 200 {object} ModelsHealthResponse
// @Failure 502 {object} APIError
// @Route /v1/predictions/health [get]
func (s *Server) handleModelsHealth(w http.ResponseWriter, r *http.Request) {
	health, err := s.gateway.ModelsHealth(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	models := make(map[string]ModelStatusEntry, len(health.Models))
	for name, status := range health.Models {
		models[name] = ModelStatusEntry{Loaded: status.Loaded, Version: status.Version}
	}

	s.writeJSON(w, http.StatusOK, ModelsHealthResponse{
		Status: prediction.AggregateHealth(health),
		Models: models,
	})
}
