package dispatch

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"samu/dispatch/internal/prediction"
)

// Orchestrator is the stateless policy layer over the store and the
// prediction gateway. Every operation is a pure function of its inputs plus
// the latest fetched record, so concurrent callers need no in-process
// coordination; the store's optimistic state check is the only lock.
type Orchestrator struct {
	store   Store
	gateway prediction.Gateway
	log     zerolog.Logger

	fallbackConfidence float64
	fallbackReason     string

	now func() time.Time
}

// NewOrchestrator wires the orchestrator with its collaborators. The
// fallback confidence and reason come from configuration; they are reported
// whenever the prediction service cannot be reached.
func NewOrchestrator(store Store, gateway prediction.Gateway, cfg prediction.Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		store:              store,
		gateway:            gateway,
		log:                log,
		fallbackConfidence: cfg.FallbackConfidence,
		fallbackReason:     cfg.FallbackReason,
		now:                time.Now,
	}
}

// NewDispatch carries the caller-supplied fields for dispatch creation.
type NewDispatch struct {
	RequestID        int64
	IncidentType     string
	Priority         Priority
	Notes            string
	Origin           GeoPoint
	Destination      GeoPoint
	DistanceKM       float64
	EstimatedMinutes int32
	Extra            []byte
}

// Create validates the fields and persists a new record in the requested
// state. Geo validation happens before any network call.
func (o *Orchestrator) Create(ctx context.Context, in NewDispatch) (Dispatch, error) {
	if err := validatePoint("origin", in.Origin); err != nil {
		return Dispatch{}, err
	}
	if err := validatePoint("destination", in.Destination); err != nil {
		return Dispatch{}, err
	}
	if strings.TrimSpace(in.IncidentType) == "" {
		return Dispatch{}, &ValidationError{Field: "incident_type", Reason: "required"}
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Dispatch{}, &ValidationError{Field: "priority", Reason: "unknown priority " + string(in.Priority)}
	}

	d := Dispatch{
		RequestID:        in.RequestID,
		State:            StateRequested,
		IncidentType:     in.IncidentType,
		Priority:         priority,
		Notes:            in.Notes,
		Origin:           in.Origin,
		Destination:      in.Destination,
		DistanceKM:       in.DistanceKM,
		EstimatedMinutes: in.EstimatedMinutes,
		RequestedAt:      o.now().UTC(),
		Extra:            in.Extra,
	}
	return o.store.CreateDispatch(ctx, d)
}

// Get returns a single dispatch record.
func (o *Orchestrator) Get(ctx context.Context, id int64) (Dispatch, error) {
	return o.store.GetDispatch(ctx, id)
}

// List returns dispatches matching the filter.
func (o *Orchestrator) List(ctx context.Context, filter ListFilter) ([]Dispatch, error) {
	return o.store.ListDispatches(ctx, filter)
}

// Recent returns dispatches requested within the given window.
func (o *Orchestrator) Recent(ctx context.Context, window time.Duration, limit int32) ([]Dispatch, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return o.store.ListRecentDispatches(ctx, o.now().UTC().Add(-window), limit)
}

// Transition moves a dispatch to the target state. Illegal transitions fail
// with InvalidTransitionError and leave the record unchanged; a lost
// concurrent write surfaces as ErrStaleState and is never retried here.
func (o *Orchestrator) Transition(ctx context.Context, id int64, target State, opts TransitionOptions) (Dispatch, error) {
	d, err := o.store.GetDispatch(ctx, id)
	if err != nil {
		return Dispatch{}, err
	}

	if opts.AmbulanceID != nil {
		if _, err := o.store.GetAmbulance(ctx, *opts.AmbulanceID); err != nil {
			return Dispatch{}, err
		}
	}

	change, err := PlanTransition(&d, target, o.now().UTC(), opts)
	if err != nil {
		return Dispatch{}, err
	}
	return o.store.ApplyStatusChange(ctx, id, change)
}

// Assign sets or replaces the assigned ambulance. For a requested dispatch
// this is the requested -> assigned transition; for an already-assigned,
// non-terminal dispatch the ambulance is swapped in place. When a severity
// level is known, a class mismatch comes back as a warning, not a failure.
func (o *Orchestrator) Assign(ctx context.Context, id int64, ambulanceID int64, severityLevel *int32) (Dispatch, string, error) {
	amb, err := o.store.GetAmbulance(ctx, ambulanceID)
	if err != nil {
		return Dispatch{}, "", err
	}

	d, err := o.store.GetDispatch(ctx, id)
	if err != nil {
		return Dispatch{}, "", err
	}

	warning := o.equipmentWarning(amb, severityLevel)

	switch {
	case d.State == StateRequested:
		change, err := PlanTransition(&d, StateAssigned, o.now().UTC(), TransitionOptions{AmbulanceID: &ambulanceID})
		if err != nil {
			return Dispatch{}, "", err
		}
		updated, err := o.store.ApplyStatusChange(ctx, id, change)
		return updated, warning, err
	case d.State.Terminal():
		return Dispatch{}, "", &InvalidTransitionError{From: d.State, To: StateAssigned}
	default:
		updated, err := o.store.UpdateAssignment(ctx, id, d.State, ambulanceID)
		return updated, warning, err
	}
}

func (o *Orchestrator) equipmentWarning(amb Ambulance, severityLevel *int32) string {
	if severityLevel == nil {
		return ""
	}
	required, err := prediction.RequiredAmbulance(*severityLevel)
	if err != nil {
		return ""
	}
	if amb.Class.AtLeast(AmbulanceClass(required)) {
		return ""
	}
	return "ambulance " + amb.CallSign + " is class " + string(amb.Class) +
		"; severity level calls for " + string(required)
}

// PingInput carries a telemetry sample. Only coordinates are required.
type PingInput struct {
	Latitude  float64
	Longitude float64
	SpeedKMH  *float64
	AltitudeM *float64
	AccuracyM *float64
	ClientRef string
}

// RecordPing validates and appends a GPS breadcrumb for the dispatch.
func (o *Orchestrator) RecordPing(ctx context.Context, dispatchID int64, in PingInput) (GpsPing, error) {
	if in.Latitude < -90 || in.Latitude > 90 {
		return GpsPing{}, &ValidationError{Field: "latitude", Reason: "must be within [-90, 90]"}
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		return GpsPing{}, &ValidationError{Field: "longitude", Reason: "must be within [-180, 180]"}
	}
	if err := validateClientRef(in.ClientRef); err != nil {
		return GpsPing{}, err
	}
	if _, err := o.store.GetDispatch(ctx, dispatchID); err != nil {
		return GpsPing{}, err
	}
	return o.store.InsertPing(ctx, GpsPing{
		DispatchID: dispatchID,
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		SpeedKMH:   in.SpeedKMH,
		AltitudeM:  in.AltitudeM,
		AccuracyM:  in.AccuracyM,
		ClientRef:  in.ClientRef,
		RecordedAt: o.now().UTC(),
	})
}

// Pings returns the breadcrumbs for a dispatch in recorded order.
func (o *Orchestrator) Pings(ctx context.Context, dispatchID int64) ([]GpsPing, error) {
	if _, err := o.store.GetDispatch(ctx, dispatchID); err != nil {
		return nil, err
	}
	return o.store.ListPings(ctx, dispatchID)
}

// FeedbackInput carries an operator rating. Rating is validated to [1,5]
// before any network call; comment and condition tag are optional.
type FeedbackInput struct {
	Rating           int32
	Comment          string
	PatientCondition string
	ClientRef        string
}

// RecordFeedback validates and appends feedback for the dispatch.
func (o *Orchestrator) RecordFeedback(ctx context.Context, dispatchID int64, in FeedbackInput) (Feedback, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return Feedback{}, &ValidationError{Field: "rating", Reason: "must be within [1, 5]"}
	}
	if err := validateClientRef(in.ClientRef); err != nil {
		return Feedback{}, err
	}
	if _, err := o.store.GetDispatch(ctx, dispatchID); err != nil {
		return Feedback{}, err
	}
	return o.store.InsertFeedback(ctx, Feedback{
		DispatchID:       dispatchID,
		Rating:           in.Rating,
		Comment:          in.Comment,
		PatientCondition: in.PatientCondition,
		ClientRef:        in.ClientRef,
		CreatedAt:        o.now().UTC(),
	})
}

// Optimize runs the merge policy for a dispatch: request an ML suggestion
// and either confirm the current assignment, surface a reassignment
// recommendation, or degrade to the current assignment when the service is
// unreachable. A prediction failure is never a dispatch failure; the
// orchestrator also never reassigns on its own.
func (o *Orchestrator) Optimize(ctx context.Context, dispatchID int64) (Suggestion, error) {
	d, err := o.store.GetDispatch(ctx, dispatchID)
	if err != nil {
		return Suggestion{}, err
	}

	var current int64
	if d.AmbulanceID != nil {
		current = *d.AmbulanceID
	}

	opt, err := o.gateway.Optimize(ctx, dispatchID)
	if err != nil {
		o.log.Warn().Err(err).Int64("dispatch_id", dispatchID).Msg("optimization degraded to current assignment")
		return Suggestion{
			DispatchID:  dispatchID,
			AmbulanceID: current,
			Confidence:  o.fallbackConfidence,
			Reason:      o.fallbackReason,
			Degraded:    true,
		}, nil
	}

	s := Suggestion{
		DispatchID:  dispatchID,
		AmbulanceID: opt.AmbulanceID,
		Confidence:  clamp01(opt.Confidence),
		Reason:      opt.Reason,
	}
	if opt.AmbulanceID != current {
		s.Reassignment = true
	}
	return s, nil
}

// Ambulances lists the vehicle registry.
func (o *Orchestrator) Ambulances(ctx context.Context) ([]Ambulance, error) {
	return o.store.ListAmbulances(ctx)
}

// Ambulance returns one registry entry.
func (o *Orchestrator) Ambulance(ctx context.Context, id int64) (Ambulance, error) {
	return o.store.GetAmbulance(ctx, id)
}

func validatePoint(field string, p GeoPoint) error {
	if p.Latitude == 0 && p.Longitude == 0 {
		return &ValidationError{Field: field, Reason: "coordinates are required"}
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return &ValidationError{Field: field + ".latitude", Reason: "must be within [-90, 90]"}
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return &ValidationError{Field: field + ".longitude", Reason: "must be within [-180, 180]"}
	}
	return nil
}

// validateClientRef accepts an empty ref (no de-duplication requested) or a
// well-formed UUID.
func validateClientRef(ref string) error {
	if ref == "" {
		return nil
	}
	if _, err := uuid.Parse(ref); err != nil {
		return &ValidationError{Field: "client_ref", Reason: "must be a UUID"}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
