package prediction

import (
	"fmt"
	"math"
)

// SeverityCategory is the operator-facing rendering of a severity level.
type SeverityCategory struct {
	Level       int32  `json:"level"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

var severityTable = map[int32]SeverityCategory{
	1: {Level: 1, Label: "Critical", Description: "Life-threatening emergency, immediate response", Color: "#dc2626"},
	2: {Level: 2, Label: "High", Description: "Urgent, response within minutes", Color: "#f97316"},
	3: {Level: 3, Label: "Medium", Description: "Serious but stable, prompt response", Color: "#eab308"},
	4: {Level: 4, Label: "Low", Description: "Minor condition, routine response", Color: "#22c55e"},
	5: {Level: 5, Label: "Info", Description: "Routine or administrative transport", Color: "#3b82f6"},
}

// CategorizeSeverity maps a level to its fixed category. Unknown levels are
// rejected, never defaulted.
func CategorizeSeverity(level int32) (SeverityCategory, error) {
	cat, ok := severityTable[level]
	if !ok {
		return SeverityCategory{}, fmt.Errorf("unknown severity level %d", level)
	}
	return cat, nil
}

// AmbulanceRequirement names the vehicle class a severity level calls for.
// Values match the dispatch registry's ambulance classes.
type AmbulanceRequirement string

const (
	RequireAdvanced AmbulanceRequirement = "advanced"
	RequireStandard AmbulanceRequirement = "standard"
	RequireBasic    AmbulanceRequirement = "basic"
)

// RequiredAmbulance derives the vehicle class for a severity level. A
// mismatch against the assigned vehicle is advisory, never a block.
func RequiredAmbulance(level int32) (AmbulanceRequirement, error) {
	switch level {
	case 1, 2:
		return RequireAdvanced, nil
	case 3:
		return RequireStandard, nil
	case 4, 5:
		return RequireBasic, nil
	}
	return "", fmt.Errorf("unknown severity level %d", level)
}

// EnrichedETA is the display form of an ETA prediction. Confidence keeps its
// canonical [0,1] value alongside the rounded percentage.
type EnrichedETA struct {
	EstimateMinutes float64 `json:"estimate_minutes"`
	Range           string  `json:"range"`
	Confidence      float64 `json:"confidence"`
	ConfidencePct   int     `json:"confidence_pct"`
}

// FormatETA renders the bounds as a human range and the confidence as a
// rounded percentage.
func FormatETA(eta ETAResult) EnrichedETA {
	return EnrichedETA{
		EstimateMinutes: eta.EstimateMinutes,
		Range:           fmt.Sprintf("%d-%d min", int64(math.Round(eta.LowerMinutes)), int64(math.Round(eta.UpperMinutes))),
		Confidence:      eta.Confidence,
		ConfidencePct:   ConfidencePercent(eta.Confidence),
	}
}

// ConfidencePercent rescales a [0,1] confidence to a rounded [0,100] value
// for display only.
func ConfidencePercent(confidence float64) int {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return int(math.Round(confidence * 100))
}

// modelNames are the four models the service must report on.
var modelNames = []string{"eta", "severity", "ambulance_selector", "route_optimizer"}

const (
	HealthHealthy  = "healthy"
	HealthDegraded = "degraded"
)

// AggregateHealth is "healthy" iff all four models report loaded. There is
// no partial state.
func AggregateHealth(h ModelsHealth) string {
	for _, name := range modelNames {
		status, ok := h.Models[name]
		if !ok || !status.Loaded {
			return HealthDegraded
		}
	}
	return HealthHealthy
}
