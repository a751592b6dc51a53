// Package services implements the synchronization pipeline: raw call
// capture (layer A), canonical upserts (layer B), derived summaries and
// snapshots (layer C), and the orchestrator that sequences them. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler layer.
package services

import "errors"

var (
	// ErrUserNotFound indicates that the requested identity has no user row,
	// e.g. a cleanup call before any sync ever ran.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmptyIdentity is returned when a sync run is requested without a
	// stable external identity.
	ErrEmptyIdentity = errors.New("external identity is empty")

	// ErrNoAccounts is returned when an insight is requested over a window
	// that contains no snapshot history at all.
	ErrNoAccounts = errors.New("no accounts to snapshot")

	// ErrVerifyMismatch indicates the post-run verification found row counts
	// diverging from what the stages reported writing.
	ErrVerifyMismatch = errors.New("verification count mismatch")
)
