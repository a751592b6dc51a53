// TokenCache: process-wide bearer credential for the upstream API.
//
// The cache holds a single token and its expiry. Refresh is serialized with
// a mutex so that concurrent sync runs racing on a stale token produce at
// most one login call; late arrivals observe the token stored by the winner.
// Tokens live only in memory and are never persisted.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/finvista/go-aa-sync-backend/internal/config"
	"github.com/finvista/go-aa-sync-backend/internal/domain"
)

// maxLoginBodyBytes caps how much of a login response body is read.
const maxLoginBodyBytes = 1 << 20

// TokenCache caches the upstream bearer token and refreshes it on staleness.
// The zero value is not usable; construct with NewTokenCache. Safe for
// concurrent use.
type TokenCache struct {
	cfg    config.AggregatorConfig
	client *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	// now is the clock; replaced in tests.
	now func() time.Time
}

// NewTokenCache constructs a TokenCache for the given aggregator settings.
func NewTokenCache(cfg config.AggregatorConfig) *TokenCache {
	return &TokenCache{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

// Get returns a valid bearer token, refreshing it when the cached one is
// past expiresAt minus the configured safety margin. Exactly one login call
// is in flight at a time; callers observing a stale token wait for the
// in-progress refresh rather than issuing their own.
func (tc *TokenCache) Get(ctx context.Context) (string, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.token != "" && tc.now().Before(tc.expiresAt.Add(-tc.cfg.TokenSafetyMargin)) {
		return tc.token, nil
	}

	token, err := tc.login(ctx)
	if err != nil {
		// Never cache a failed result.
		return "", err
	}

	tc.token = token
	tc.expiresAt = tc.now().Add(tc.cfg.TokenTTL)
	log.Debug().Time("expires_at", tc.expiresAt).Msg("aggregator token refreshed")
	return tc.token, nil
}

// Invalidate drops the cached token so the next Get performs a fresh login.
func (tc *TokenCache) Invalidate() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.token = ""
	tc.expiresAt = time.Time{}
}

// HasToken reports whether a non-expired token is currently cached, without
// triggering a refresh. Used by the health endpoint.
func (tc *TokenCache) HasToken() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.token != "" && tc.now().Before(tc.expiresAt.Add(-tc.cfg.TokenSafetyMargin))
}

// login performs the upstream login call and returns the issued token.
// Callers must hold tc.mu.
func (tc *TokenCache) login(ctx context.Context) (string, error) {
	if tc.cfg.UserID == "" || tc.cfg.Password == "" {
		return "", ErrMissingCredentials
	}

	body, err := json.Marshal(domain.LoginRequest{
		UserID:   tc.cfg.UserID,
		Password: tc.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("encode login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tc.cfg.BaseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := tc.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxLoginBodyBytes))
	if err != nil {
		return "", &TransportError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &AuthError{Status: resp.StatusCode, Body: string(respBody)}
	}

	var lr domain.LoginResponse
	if err := json.Unmarshal(respBody, &lr); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if lr.Token == "" {
		return "", &AuthError{Status: resp.StatusCode, Body: "login response carried no token"}
	}
	return lr.Token, nil
}
