package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samu/dispatch/internal/config"
	"samu/dispatch/internal/dispatch"
	"samu/dispatch/internal/prediction"
)

type fakeStore struct {
	nextID     int64
	dispatches map[int64]dispatch.Dispatch
	pings      map[int64][]dispatch.GpsPing
	feedback   map[int64][]dispatch.Feedback
	ambulances map[int64]dispatch.Ambulance
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		dispatches: make(map[int64]dispatch.Dispatch),
		pings:      make(map[int64][]dispatch.GpsPing),
		feedback:   make(map[int64][]dispatch.Feedback),
		ambulances: make(map[int64]dispatch.Ambulance),
	}
}

func (f *fakeStore) GetDispatch(_ context.Context, id int64) (dispatch.Dispatch, error) {
	d, ok := f.dispatches[id]
	if !ok {
		return dispatch.Dispatch{}, dispatch.ErrNotFound
	}
	return d, nil
}

func (f *fakeStore) ListDispatches(_ context.Context, filter dispatch.ListFilter) ([]dispatch.Dispatch, error) {
	var out []dispatch.Dispatch
	for _, d := range f.dispatches {
		if filter.State != "" && d.State != filter.State {
			continue
		}
		if filter.Priority != "" && d.Priority != filter.Priority {
			continue
		}
		if filter.ActiveOnly && d.State.Terminal() {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeStore) ListRecentDispatches(_ context.Context, since time.Time, _ int32) ([]dispatch.Dispatch, error) {
	var out []dispatch.Dispatch
	for _, d := range f.dispatches {
		if !d.RequestedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateDispatch(_ context.Context, d dispatch.Dispatch) (dispatch.Dispatch, error) {
	f.nextID++
	d.ID = f.nextID
	f.dispatches[d.ID] = d
	return d, nil
}

func (f *fakeStore) ApplyStatusChange(_ context.Context, id int64, change dispatch.StatusChange) (dispatch.Dispatch, error) {
	d, ok := f.dispatches[id]
	if !ok {
		return dispatch.Dispatch{}, dispatch.ErrNotFound
	}
	if d.State != change.From {
		return dispatch.Dispatch{}, dispatch.ErrStaleState
	}
	updated := change.Apply(d)
	f.dispatches[id] = updated
	return updated, nil
}

func (f *fakeStore) UpdateAssignment(_ context.Context, id int64, expected dispatch.State, ambulanceID int64) (dispatch.Dispatch, error) {
	d, ok := f.dispatches[id]
	if !ok {
		return dispatch.Dispatch{}, dispatch.ErrNotFound
	}
	if d.State != expected {
		return dispatch.Dispatch{}, dispatch.ErrStaleState
	}
	d.AmbulanceID = &ambulanceID
	f.dispatches[id] = d
	return d, nil
}

func (f *fakeStore) InsertPing(_ context.Context, ping dispatch.GpsPing) (dispatch.GpsPing, error) {
	ping.ID = int64(len(f.pings[ping.DispatchID]) + 1)
	f.pings[ping.DispatchID] = append(f.pings[ping.DispatchID], ping)
	return ping, nil
}

func (f *fakeStore) ListPings(_ context.Context, dispatchID int64) ([]dispatch.GpsPing, error) {
	return f.pings[dispatchID], nil
}

func (f *fakeStore) InsertFeedback(_ context.Context, fb dispatch.Feedback) (dispatch.Feedback, error) {
	fb.ID = int64(len(f.feedback[fb.DispatchID]) + 1)
	f.feedback[fb.DispatchID] = append(f.feedback[fb.DispatchID], fb)
	return fb, nil
}

func (f *fakeStore) GetAmbulance(_ context.Context, id int64) (dispatch.Ambulance, error) {
	a, ok := f.ambulances[id]
	if !ok {
		return dispatch.Ambulance{}, dispatch.ErrNotFound
	}
	return a, nil
}

func (f *fakeStore) ListAmbulances(_ context.Context) ([]dispatch.Ambulance, error) {
	var out []dispatch.Ambulance
	for _, a := range f.ambulances {
		out = append(out, a)
	}
	return out, nil
}

type fakeGateway struct {
	optimization prediction.Optimization
	optimizeErr  error
	severity     prediction.SeverityResult
	severityErr  error
	eta          prediction.ETAResult
	etaErr       error
	health       prediction.ModelsHealth
	healthErr    error
}

func (g *fakeGateway) Optimize(context.Context, int64) (prediction.Optimization, error) {
	return g.optimization, g.optimizeErr
}

func (g *fakeGateway) Severity(context.Context, prediction.SeverityRequest) (prediction.SeverityResult, error) {
	return g.severity, g.severityErr
}

func (g *fakeGateway) ETA(context.Context, prediction.ETARequest) (prediction.ETAResult, error) {
	return g.eta, g.etaErr
}

func (g *fakeGateway) ModelsHealth(context.Context) (prediction.ModelsHealth, error) {
	return g.health, g.healthErr
}

func newTestServer(store *fakeStore, gw prediction.Gateway) *Server {
	cfg := config.Config{Env: "test"}
	cfg.Prediction.FallbackConfidence = 0.5
	cfg.Prediction.FallbackReason = "Servicio de prediccion no disponible; se mantiene la asignacion actual"

	return &Server{
		cfg:       cfg,
		log:       zerolog.Nop(),
		orc:       dispatch.NewOrchestrator(store, gw, cfg.Prediction, zerolog.Nop()),
		gateway:   gw,
		validate:  newValidator(),
		startedAt: time.Now(),
	}
}

func doRequest(t *testing.T, srv *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, req)
	return rec
}

func seed(t *testing.T, store *fakeStore, state dispatch.State) dispatch.Dispatch {
	t.Helper()
	d, err := store.CreateDispatch(context.Background(), dispatch.Dispatch{
		RequestID:    42,
		State:        state,
		IncidentType: "trauma",
		Priority:     dispatch.PriorityHigh,
		Origin:       dispatch.GeoPoint{Latitude: -33.45, Longitude: -70.66},
		Destination:  dispatch.GeoPoint{Latitude: -33.44, Longitude: -70.65},
		RequestedAt:  time.Now().UTC().Add(-time.Hour),
	})
	require.NoError(t, err)
	return d
}

func TestCreateDispatchEndpoint(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeGateway{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/dispatches", map[string]any{
		"request_id":    42,
		"incident_type": "trauma",
		"origin_lat":    -33.45,
		"origin_lng":    -70.66,
		"dest_lat":      -33.44,
		"dest_lng":      -70.65,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "requested", resp.State)
	assert.Equal(t, "medium", resp.Priority)
	assert.NotZero(t, resp.ID)
}

func TestCreateDispatchRejectsUnknownFields(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeGateway{})

	rec := doRequest(t, srv, http.MethodPost, "/v1/dispatches", map[string]any{
		"request_id":    42,
		"incident_type": "trauma",
		"origin_lat":    -33.45,
		"origin_lng":    -70.66,
		"dest_lat":      -33.44,
		"dest_lng":      -70.65,
		"bogus_field":   true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDispatchNotFound(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeGateway{})

	rec := doRequest(t, srv, http.MethodGet, "/v1/dispatches/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusIllegalTransitionConflicts(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeGateway{})
	d := seed(t, store, dispatch.StateRequested)

	rec := doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/v1/dispatches/%d/status", d.ID), map[string]any{
		"state": "completed",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateStatusAssigns(t *testing.T) {
	store := newFakeStore()
	store.ambulances[5] = dispatch.Ambulance{ID: 5, CallSign: "SAMU-05", Class: dispatch.ClassAdvanced}
	srv := newTestServer(store, &fakeGateway{})
	d := seed(t, store, dispatch.StateRequested)

	rec := doRequest(t, srv, http.MethodPatch, fmt.Sprintf("/v1/dispatches/%d/status", d.ID), map[string]any{
		"state":        "assigned",
		"ambulance_id": 5,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "assigned", resp.State)
	require.NotNil(t, resp.AmbulanceID)
	assert.Equal(t, int64(5), *resp.AmbulanceID)
	require.NotNil(t, resp.AssignedAt)
}

func TestOptimizeDegradesTo200(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeGateway{optimizeErr: prediction.ErrUnavailable})
	d := seed(t, store, dispatch.StateAssigned)
	amb := int64(5)
	d.AmbulanceID = &amb
	store.dispatches[d.ID] = d

	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/v1/dispatches/%d/optimize", d.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SuggestionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, int64(5), resp.AmbulanceID)
	assert.Equal(t, 0.5, resp.Confidence)
	assert.Equal(t, 50, resp.ConfidencePct)
	assert.Contains(t, resp.Reason, "no disponible")
}

func TestRecordFeedbackRatingOutOfRange(t *testing.T) {
	store := newFakeStore()
	srv := newTestServer(store, &fakeGateway{})
	d := seed(t, store, dispatch.StateCompleted)

	rec := doRequest(t, srv, http.MethodPost, fmt.Sprintf("/v1/dispatches/%d/feedback", d.ID), map[string]any{
		"rating": 6,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.feedback[d.ID])
}

func TestPredictSeverityEnriches(t *testing.T) {
	gw := &fakeGateway{severity: prediction.SeverityResult{Level: 3, Confidence: 0.82, Recommendation: "dispatch promptly"}}
	srv := newTestServer(newFakeStore(), gw)

	rec := doRequest(t, srv, http.MethodPost, "/v1/predictions/severity", map[string]any{
		"description": "fractured arm, conscious",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SeverityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int32(3), resp.Level)
	assert.Equal(t, "Medium", resp.Label)
	assert.Equal(t, "#eab308", resp.Color)
	assert.Equal(t, "standard", resp.RequiredClass)
	assert.Equal(t, 82, resp.ConfidencePct)
}

func TestPredictSeverityUnavailableIs502(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeGateway{severityErr: prediction.ErrUnavailable})

	rec := doRequest(t, srv, http.MethodPost, "/v1/predictions/severity", map[string]any{
		"description": "unresponsive",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestModelsHealthAggregation(t *testing.T) {
	gw := &fakeGateway{health: prediction.ModelsHealth{Models: map[string]prediction.ModelStatus{
		"eta":                {Loaded: true, Version: "1.0.0"},
		"severity":           {Loaded: true, Version: "1.0.0"},
		"ambulance_selector": {Loaded: true, Version: "1.0.0"},
		"route_optimizer":    {Loaded: false},
	}}}
	srv := newTestServer(newFakeStore(), gw)

	rec := doRequest(t, srv, http.MethodGet, "/v1/predictions/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ModelsHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Len(t, resp.Models, 4)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(newFakeStore(), &fakeGateway{})

	rec := doRequest(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Env)
}
