package dispatch

import (
	"math"
	"strings"
	"time"
)

// transitions is the full table of legal state changes. Anything absent here
// fails with InvalidTransitionError.
var transitions = map[State][]State{
	StateRequested: {StateAssigned, StateCancelled},
	StateAssigned:  {StateEnRoute, StateCancelled},
	StateEnRoute:   {StateOnScene, StateCancelled},
	StateOnScene:   {StateCompleted, StateCancelled},
	StateCompleted: {},
	StateCancelled: {},
}

// CanTransition reports whether from -> to appears in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionOptions carries the optional inputs a transition may consume.
type TransitionOptions struct {
	// AmbulanceID is required for requested -> assigned when the record has
	// no assignment yet.
	AmbulanceID *int64
	// CancelReason, when supplied on a cancellation, is appended to notes.
	CancelReason string
}

// StatusChange is the set of mutations a legal transition produces. It is
// computed without touching the record so a losing optimistic write leaves
// stored state untouched.
type StatusChange struct {
	From State
	To   State
	At   time.Time

	AmbulanceID   *int64
	AssignedAt    *time.Time
	ArrivedAt     *time.Time
	CompletedAt   *time.Time
	ActualMinutes *int32
	Notes         *string
}

// PlanTransition validates target against the current record and returns the
// mutations to apply. The record itself is not modified.
func PlanTransition(d *Dispatch, target State, at time.Time, opts TransitionOptions) (StatusChange, error) {
	change := StatusChange{From: d.State, To: target, At: at}

	if !target.Valid() {
		return change, &ValidationError{Field: "state", Reason: "unknown state " + string(target)}
	}
	if !CanTransition(d.State, target) {
		return change, &InvalidTransitionError{From: d.State, To: target}
	}
	if at.Before(lastTimestamp(d)) {
		return change, &ValidationError{Field: "timestamp", Reason: "must not precede earlier lifecycle timestamps"}
	}

	switch target {
	case StateAssigned:
		id := d.AmbulanceID
		if opts.AmbulanceID != nil {
			id = opts.AmbulanceID
		}
		if id == nil {
			return change, &ValidationError{Field: "ambulance_id", Reason: "required to assign a dispatch"}
		}
		change.AmbulanceID = id
		ts := at
		change.AssignedAt = &ts
	case StateEnRoute:
		// Departure has no dedicated timestamp; the state alone records it.
	case StateOnScene:
		ts := at
		change.ArrivedAt = &ts
	case StateCompleted:
		ts := at
		change.CompletedAt = &ts
		if d.AssignedAt != nil {
			minutes := int32(math.Round(at.Sub(*d.AssignedAt).Minutes()))
			change.ActualMinutes = &minutes
		}
	case StateCancelled:
		if reason := strings.TrimSpace(opts.CancelReason); reason != "" {
			notes := d.Notes
			if notes != "" {
				notes += "\n"
			}
			notes += "cancelled: " + reason
			change.Notes = &notes
		}
	}

	return change, nil
}

// Apply copies the change onto a dispatch value and returns the result.
func (c StatusChange) Apply(d Dispatch) Dispatch {
	d.State = c.To
	if c.AmbulanceID != nil {
		d.AmbulanceID = c.AmbulanceID
	}
	if c.AssignedAt != nil {
		d.AssignedAt = c.AssignedAt
	}
	if c.ArrivedAt != nil {
		d.ArrivedAt = c.ArrivedAt
	}
	if c.CompletedAt != nil {
		d.CompletedAt = c.CompletedAt
	}
	if c.ActualMinutes != nil {
		d.ActualMinutes = c.ActualMinutes
	}
	if c.Notes != nil {
		d.Notes = *c.Notes
	}
	return d
}

func lastTimestamp(d *Dispatch) time.Time {
	last := d.RequestedAt
	for _, ts := range []*time.Time{d.AssignedAt, d.ArrivedAt, d.CompletedAt} {
		if ts != nil && ts.After(last) {
			last = *ts
		}
	}
	return last
}
