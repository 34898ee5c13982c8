// Package services defines the business logic for authentication and
// session lifecycle. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Launch-data verification failures are not redeclared here: the telegram
// package owns those sentinels (telegram.ErrMissingHash and friends) and
// services propagate them untouched so the handler layer can map each to a
// stable HTTP result.
package services

import "errors"

var (
	// ErrAccountNotFound indicates no account exists for the requested
	// internal id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrSessionNotFound indicates the requested session does not exist or
	// does not belong to the calling account.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionNotActive indicates the session exists but can no longer
	// authenticate requests: it was revoked or its expiry has passed.
	ErrSessionNotActive = errors.New("session revoked or expired")
)
