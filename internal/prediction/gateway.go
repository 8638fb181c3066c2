package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnavailable marks a prediction call that failed at the network or
// service level. The optimization path absorbs it into a fallback; point
// queries surface it to the caller.
var ErrUnavailable = errors.New("prediction service unavailable")

// Gateway is the typed boundary to the ML prediction service. It carries no
// business logic; every method is a single request/response exchange.
type Gateway interface {
	Optimize(ctx context.Context, dispatchID int64) (Optimization, error)
	Severity(ctx context.Context, req SeverityRequest) (SeverityResult, error)
	ETA(ctx context.Context, req ETARequest) (ETAResult, error)
	ModelsHealth(ctx context.Context) (ModelsHealth, error)
}

// Config groups the prediction-service client settings.
type Config struct {
	BaseURL string        `env:"BASE_URL" envDefault:"http://localhost:8090"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
	// FallbackConfidence is the floor reported when the orchestrator falls
	// back to the current assignment.
	FallbackConfidence float64 `env:"FALLBACK_CONFIDENCE" envDefault:"0.5"`
	// FallbackReason is the reason attached to degraded suggestions.
	FallbackReason string `env:"FALLBACK_REASON" envDefault:"Servicio de prediccion no disponible; se mantiene la asignacion actual"`
}

// HTTPGateway talks to the prediction service over HTTP.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewHTTPGateway builds a gateway with the configured per-request timeout.
func NewHTTPGateway(cfg Config, log zerolog.Logger) *HTTPGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPGateway{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}
}

// Optimize requests the best-ambulance recommendation for a dispatch.
func (g *HTTPGateway) Optimize(ctx context.Context, dispatchID int64) (Optimization, error) {
	var out Optimization
	path := fmt.Sprintf("/optimize/%d", dispatchID)
	if err := g.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return Optimization{}, err
	}
	return out, nil
}

// Severity requests an incident severity classification.
func (g *HTTPGateway) Severity(ctx context.Context, req SeverityRequest) (SeverityResult, error) {
	var out SeverityResult
	if err := g.do(ctx, http.MethodPost, "/predict/severity", req, &out); err != nil {
		return SeverityResult{}, err
	}
	return out, nil
}

// ETA requests a travel-time estimate.
func (g *HTTPGateway) ETA(ctx context.Context, req ETARequest) (ETAResult, error) {
	var out ETAResult
	if err := g.do(ctx, http.MethodPost, "/predict/eta", req, &out); err != nil {
		return ETAResult{}, err
	}
	return out, nil
}

// ModelsHealth reports per-model load status.
func (g *HTTPGateway) ModelsHealth(ctx context.Context) (ModelsHealth, error) {
	var out ModelsHealth
	if err := g.do(ctx, http.MethodGet, "/models/health", nil, &out); err != nil {
		return ModelsHealth{}, err
	}
	return out, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("prediction request failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("prediction service returned non-OK status")
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
