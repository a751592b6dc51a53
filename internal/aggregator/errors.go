// Package aggregator implements the upstream Account-Aggregator API client:
// a mutex-guarded bearer-token cache and an authenticated forwarding proxy.
// This file defines the client error taxonomy. Callers distinguish outcomes
// with errors.As/errors.Is; none of these errors are retried here (retry, if
// desired, is an outer-loop concern layered on top of idempotent upserts).
package aggregator

import (
	"errors"
	"fmt"
)

// AuthError indicates the login call against the identity endpoint was
// rejected. Fatal for the current sync run; a failed login is never cached.
type AuthError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("aggregator login rejected (status %d)", e.Status)
}

// UpstreamError indicates a domain endpoint returned a non-2xx response.
// Status and body are surfaced verbatim to the caller.
type UpstreamError struct {
	Status int
	Body   string
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// TransportError indicates no usable response was obtained at all
// (connection failure, timeout, cancelled context).
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("upstream transport failure: %v", e.Err)
}

// Unwrap exposes the underlying network error.
func (e *TransportError) Unwrap() error { return e.Err }

// ErrMissingCredentials is returned when login is attempted without
// configured upstream credentials.
var ErrMissingCredentials = errors.New("aggregator credentials not configured")
