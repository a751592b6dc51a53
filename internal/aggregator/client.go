// AuthenticatedProxy: forwards caller requests to the upstream aggregator
// API with the cached bearer token attached. The proxy performs exactly one
// attempt per call; upstream failures are surfaced verbatim and never
// retried here.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/finvista/go-aa-sync-backend/internal/config"
)

// maxResponseBodyBytes caps how much of an upstream response body is read.
const maxResponseBodyBytes = 8 << 20

// Response is the raw outcome of one proxied upstream call, kept alongside
// the measured latency so the raw-capture stage can audit it.
type Response struct {
	Status    int
	Body      []byte
	LatencyMs int64
}

// Client is the authenticated proxy in front of the upstream aggregator
// API. It obtains tokens from the injected TokenCache and issues JSON POST
// requests against baseURL+endpoint. Safe for concurrent use.
type Client struct {
	cfg    config.AggregatorConfig
	tokens *TokenCache
	http   *http.Client
}

// NewClient constructs a Client around the given token cache.
func NewClient(cfg config.AggregatorConfig, tokens *TokenCache) *Client {
	return &Client{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
}

// BaseURL returns the configured upstream base URL (health reporting).
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Tokens exposes the underlying token cache (health reporting).
func (c *Client) Tokens() *TokenCache { return c.tokens }

// Forward POSTs body as JSON to baseURL+endpoint with the cached bearer
// token attached. On a non-2xx upstream response it returns *UpstreamError
// carrying the upstream status and body; on a network failure it returns
// *TransportError. The Response also reports wall-clock latency so callers
// can record the call in the audit trail.
func (c *Client) Forward(ctx context.Context, endpoint string, body any) (*Response, error) {
	tr := otel.Tracer("aggregator/Client")
	ctx, span := tr.Start(ctx, "Forward",
		trace.WithAttributes(attribute.String("upstream.endpoint", endpoint)),
	)
	defer span.End()

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.http.Do(req)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	return &Response{
		Status:    resp.StatusCode,
		Body:      respBody,
		LatencyMs: latency,
	}, nil
}

// Health validates that a token can currently be obtained. It is used by
// external monitoring; a failed login surfaces as the underlying error.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.tokens.Get(ctx)
	return err
}
