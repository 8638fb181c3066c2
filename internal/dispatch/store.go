package dispatch

import (
	"context"
	"time"
)

// Store is the persistence boundary for dispatch records, telemetry and
// feedback. Implementations must return ErrNotFound for unknown ids and
// ErrStaleState when an optimistic status write observes a state other than
// the one the change was planned against.
type Store interface {
	GetDispatch(ctx context.Context, id int64) (Dispatch, error)
	ListDispatches(ctx context.Context, filter ListFilter) ([]Dispatch, error)
	ListRecentDispatches(ctx context.Context, since time.Time, limit int32) ([]Dispatch, error)
	CreateDispatch(ctx context.Context, d Dispatch) (Dispatch, error)

	// ApplyStatusChange persists a planned transition. The write must only
	// succeed while the stored state still equals change.From.
	ApplyStatusChange(ctx context.Context, id int64, change StatusChange) (Dispatch, error)

	// UpdateAssignment swaps the assigned ambulance without changing state.
	// The write must only succeed while the stored state still equals expected.
	UpdateAssignment(ctx context.Context, id int64, expected State, ambulanceID int64) (Dispatch, error)

	InsertPing(ctx context.Context, ping GpsPing) (GpsPing, error)
	ListPings(ctx context.Context, dispatchID int64) ([]GpsPing, error)
	InsertFeedback(ctx context.Context, fb Feedback) (Feedback, error)

	GetAmbulance(ctx context.Context, id int64) (Ambulance, error)
	ListAmbulances(ctx context.Context) ([]Ambulance, error)
}
