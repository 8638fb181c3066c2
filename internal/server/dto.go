package server

import (
	"encoding/json"
	"time"

	"samu/dispatch/internal/dispatch"
)

type RawJSON []byte

func (r RawJSON) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	return []byte(r), nil
}

func (r *RawJSON) UnmarshalJSON(data []byte) error {
	if r == nil {
		return nil
	}
	*r = append((*r)[:0], data...)
	return nil
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Address   string  `json:"address,omitempty"`
}

type DispatchResponse struct {
	ID               int64           `json:"id"`
	RequestID        int64           `json:"request_id"`
	AmbulanceID      *int64          `json:"ambulance_id,omitempty"`
	State            string          `json:"state"`
	IncidentType     string          `json:"incident_type"`
	Priority         string          `json:"priority"`
	Notes            string          `json:"notes,omitempty"`
	Origin           GeoPoint        `json:"origin"`
	Destination      GeoPoint        `json:"destination"`
	DistanceKM       float64         `json:"distance_km"`
	EstimatedMinutes int32           `json:"estimated_minutes"`
	ActualMinutes    *int32          `json:"actual_minutes,omitempty"`
	RequestedAt      time.Time       `json:"requested_at"`
	AssignedAt       *time.Time      `json:"assigned_at,omitempty"`
	ArrivedAt        *time.Time      `json:"arrived_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
	Extra            json.RawMessage `json:"extra,omitempty"`
}

type GpsPingResponse struct {
	ID         int64     `json:"id"`
	DispatchID int64     `json:"dispatch_id"`
	Location   GeoPoint  `json:"location"`
	SpeedKMH   *float64  `json:"speed_kmh,omitempty"`
	AltitudeM  *float64  `json:"altitude_m,omitempty"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type FeedbackResponse struct {
	ID               int64     `json:"id"`
	DispatchID       int64     `json:"dispatch_id"`
	Rating           int32     `json:"rating"`
	Comment          string    `json:"comment,omitempty"`
	PatientCondition string    `json:"patient_condition,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type AmbulanceResponse struct {
	ID          int64      `json:"id"`
	CallSign    string     `json:"call_sign"`
	Class       string     `json:"class"`
	Status      string     `json:"status"`
	Location    GeoPoint   `json:"location"`
	LastContact *time.Time `json:"last_contact_at,omitempty"`
}

// SuggestionResponse carries the optimization-merge result. Confidence is
// canonical [0,1]; confidence_pct is the display rendering.
type SuggestionResponse struct {
	DispatchID    int64   `json:"dispatch_id"`
	AmbulanceID   int64   `json:"ambulance_id"`
	Confidence    float64 `json:"confidence"`
	ConfidencePct int     `json:"confidence_pct"`
	Reason        string  `json:"reason,omitempty"`
	Reassignment  bool    `json:"reassignment"`
	Degraded      bool    `json:"degraded"`
}

type AssignmentResponse struct {
	Dispatch DispatchResponse `json:"dispatch"`
	Warning  string           `json:"warning,omitempty"`
}

type SeverityResponse struct {
	Level          int32   `json:"level"`
	Label          string  `json:"label"`
	Description    string  `json:"description"`
	Color          string  `json:"color"`
	RequiredClass  string  `json:"required_class"`
	Confidence     float64 `json:"confidence"`
	ConfidencePct  int     `json:"confidence_pct"`
	Recommendation string  `json:"recommendation,omitempty"`
}

type ETAResponse struct {
	EstimateMinutes float64 `json:"estimate_minutes"`
	Range           string  `json:"range"`
	Confidence      float64 `json:"confidence"`
	ConfidencePct   int     `json:"confidence_pct"`
}

type ModelsHealthResponse struct {
	Status string                      `json:"status"`
	Models map[string]ModelStatusEntry `json:"models"`
}

type ModelStatusEntry struct {
	Loaded  bool   `json:"loaded"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Env    string `json:"env"`
	Uptime string `json:"uptime"`
}

func mapDispatch(d dispatch.Dispatch) DispatchResponse {
	return DispatchResponse{
		ID:               d.ID,
		RequestID:        d.RequestID,
		AmbulanceID:      d.AmbulanceID,
		State:            string(d.State),
		IncidentType:     d.IncidentType,
		Priority:         string(d.Priority),
		Notes:            d.Notes,
		Origin:           GeoPoint{Latitude: d.Origin.Latitude, Longitude: d.Origin.Longitude, Address: d.Origin.Address},
		Destination:      GeoPoint{Latitude: d.Destination.Latitude, Longitude: d.Destination.Longitude, Address: d.Destination.Address},
		DistanceKM:       d.DistanceKM,
		EstimatedMinutes: d.EstimatedMinutes,
		ActualMinutes:    d.ActualMinutes,
		RequestedAt:      d.RequestedAt.UTC(),
		AssignedAt:       optionalTime(d.AssignedAt),
		ArrivedAt:        optionalTime(d.ArrivedAt),
		CompletedAt:      optionalTime(d.CompletedAt),
		Extra:            d.Extra,
	}
}

func mapPing(p dispatch.GpsPing) GpsPingResponse {
	return GpsPingResponse{
		ID:         p.ID,
		DispatchID: p.DispatchID,
		Location:   GeoPoint{Latitude: p.Latitude, Longitude: p.Longitude},
		SpeedKMH:   p.SpeedKMH,
		AltitudeM:  p.AltitudeM,
		AccuracyM:  p.AccuracyM,
		RecordedAt: p.RecordedAt.UTC(),
	}
}

func mapFeedback(fb dispatch.Feedback) FeedbackResponse {
	return FeedbackResponse{
		ID:               fb.ID,
		DispatchID:       fb.DispatchID,
		Rating:           fb.Rating,
		Comment:          fb.Comment,
		PatientCondition: fb.PatientCondition,
		CreatedAt:        fb.CreatedAt.UTC(),
	}
}

func mapAmbulance(a dispatch.Ambulance) AmbulanceResponse {
	return AmbulanceResponse{
		ID:          a.ID,
		CallSign:    a.CallSign,
		Class:       string(a.Class),
		Status:      a.Status,
		Location:    GeoPoint{Latitude: a.Latitude, Longitude: a.Longitude},
		LastContact: optionalTime(a.LastContact),
	}
}
