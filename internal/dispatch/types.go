package dispatch

import (
	"encoding/json"
	"time"
)

// State is the lifecycle state of a dispatch record.
type State string

const (
	StateRequested State = "requested"
	StateAssigned  State = "assigned"
	StateEnRoute   State = "en_route"
	StateOnScene   State = "on_scene"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	switch s {
	case StateRequested, StateAssigned, StateEnRoute, StateOnScene, StateCompleted, StateCancelled:
		return true
	}
	return false
}

// Priority classifies the urgency of a dispatch.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate with an optional free-text address.
type GeoPoint struct {
	Latitude  float64
	Longitude float64
	Address   string
}

// Dispatch is a single emergency-response assignment record tracking an
// ambulance from request to completion. Timestamps are set at most once and
// are monotonically non-decreasing when present.
type Dispatch struct {
	ID          int64
	RequestID   int64
	AmbulanceID *int64

	State        State
	IncidentType string
	Priority     Priority
	Notes        string

	Origin      GeoPoint
	Destination GeoPoint

	DistanceKM       float64
	EstimatedMinutes int32
	ActualMinutes    *int32

	RequestedAt time.Time
	AssignedAt  *time.Time
	ArrivedAt   *time.Time
	CompletedAt *time.Time

	Extra json.RawMessage
}

// GpsPing is an immutable telemetry event tied to a dispatch. Pings only
// accumulate; they are never updated or deleted.
type GpsPing struct {
	ID         int64
	DispatchID int64
	Latitude   float64
	Longitude  float64
	SpeedKMH   *float64
	AltitudeM  *float64
	AccuracyM  *float64
	// ClientRef is an optional caller-supplied identifier the store may use
	// to de-duplicate retried writes. The orchestrator itself does not
	// guarantee idempotence.
	ClientRef  string
	RecordedAt time.Time
}

// Feedback is the operator rating recorded against a completed dispatch.
type Feedback struct {
	ID               int64
	DispatchID       int64
	Rating           int32
	Comment          string
	PatientCondition string
	ClientRef        string
	CreatedAt        time.Time
}

// AmbulanceClass is the equipment level of a vehicle.
type AmbulanceClass string

const (
	ClassBasic    AmbulanceClass = "basic"
	ClassStandard AmbulanceClass = "standard"
	ClassAdvanced AmbulanceClass = "advanced"
)

// rank orders classes by equipment level so requirements can be compared.
func (c AmbulanceClass) rank() int {
	switch c {
	case ClassBasic:
		return 1
	case ClassStandard:
		return 2
	case ClassAdvanced:
		return 3
	}
	return 0
}

// AtLeast reports whether c meets or exceeds the required class.
func (c AmbulanceClass) AtLeast(required AmbulanceClass) bool {
	return c.rank() >= required.rank()
}

// Ambulance is a registry entry for a vehicle operators can dispatch.
type Ambulance struct {
	ID          int64
	CallSign    string
	Class       AmbulanceClass
	Status      string
	Latitude    float64
	Longitude   float64
	LastContact *time.Time
}

// Suggestion is the orchestrator's synthesis of an ML optimization result
// for a dispatch. It is advisory only and never persisted.
type Suggestion struct {
	DispatchID  int64
	AmbulanceID int64
	// Confidence stays in [0,1]; presentation-layer percentage conversion
	// is the enrichment package's job.
	Confidence float64
	Reason     string
	// Reassignment is true when the suggested ambulance differs from the
	// current assignment. The caller decides whether to act on it.
	Reassignment bool
	// Degraded is true when the prediction service was unavailable and the
	// suggestion fell back to the current assignment.
	Degraded bool
}

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	State      State
	Priority   Priority
	ActiveOnly bool
	Limit      int32
}
