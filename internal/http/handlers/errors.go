// Package handlers defines HTTP-layer error codes used across the
// versioned API endpoints.
//
// These symbolic constants are mapped to HTTP responses via the fail()
// helper in this package, giving clients a stable, machine-readable error
// taxonomy alongside human-readable messages. The root /telegram-auth
// endpoint does NOT use these codes: its response contract (including the
// localized error string) is fixed by the Mini App client and kept in
// auth_handler.go.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeListFailed   = "list_failed"
	ErrCodeLogoutFailed = "logout_failed"
)
