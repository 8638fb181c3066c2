package prediction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *HTTPGateway {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewHTTPGateway(Config{BaseURL: ts.URL, Timeout: time.Second}, zerolog.Nop())
}

func TestGatewayOptimize(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/optimize/42", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Optimization{AmbulanceID: 7, Confidence: 0.91, Reason: "closest available unit"})
	})

	opt, err := gw.Optimize(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(7), opt.AmbulanceID)
	assert.Equal(t, 0.91, opt.Confidence)
}

func TestGatewaySeverityDecodesResult(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/severity", r.URL.Path)

		var req SeverityRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "chest pain", req.Description)

		_ = json.NewEncoder(w).Encode(SeverityResult{Level: 2, Confidence: 0.77})
	})

	res, err := gw.Severity(context.Background(), SeverityRequest{Description: "chest pain"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), res.Level)
}

func TestGatewayWrapsServerErrors(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := gw.Optimize(context.Background(), 1)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = gw.ModelsHealth(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayWrapsConnectionFailures(t *testing.T) {
	// point at a closed listener
	ts := httptest.NewServer(http.NotFoundHandler())
	ts.Close()
	gw := NewHTTPGateway(Config{BaseURL: ts.URL, Timeout: time.Second}, zerolog.Nop())

	_, err := gw.ETA(context.Background(), ETARequest{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGatewayWrapsMalformedBody(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})

	_, err := gw.ModelsHealth(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
