package prediction

// SeverityRequest asks the ML service to classify an incident description.
type SeverityRequest struct {
	Description string `json:"description"`
	PatientAge  *int32 `json:"patient_age,omitempty"`
}

// SeverityResult is a raw severity classification. Level runs 1 (critical)
// to 5 (routine); Confidence is a fraction in [0,1].
type SeverityResult struct {
	Level          int32   `json:"severity_level"`
	Confidence     float64 `json:"confidence"`
	Recommendation string  `json:"recommendation"`
}

// ETARequest asks for a travel-time estimate between two coordinates.
type ETARequest struct {
	OriginLat    float64 `json:"origin_lat"`
	OriginLon    float64 `json:"origin_lon"`
	DestLat      float64 `json:"dest_lat"`
	DestLon      float64 `json:"dest_lon"`
	TrafficLevel *int32  `json:"traffic_level,omitempty"`
}

// ETAResult is a raw travel-time estimate in minutes with bounds.
type ETAResult struct {
	EstimateMinutes float64 `json:"eta_minutes"`
	LowerMinutes    float64 `json:"lower_minutes"`
	UpperMinutes    float64 `json:"upper_minutes"`
	Confidence      float64 `json:"confidence"`
}

// Optimization is the ML service's ambulance recommendation for a dispatch.
type Optimization struct {
	AmbulanceID int64   `json:"ambulance_id"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason,omitempty"`
	DistanceKM  float64 `json:"distance_km,omitempty"`
}

// ModelStatus describes one model's load state.
type ModelStatus struct {
	Loaded  bool   `json:"loaded"`
	Version string `json:"version"`
}

// ModelsHealth reports the load state of every model the service hosts.
// Keys are the model names of modelNames.
type ModelsHealth struct {
	Models map[string]ModelStatus `json:"models"`
}
