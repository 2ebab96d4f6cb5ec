package domain

import "errors"

// Authentication and persistence error kinds. Callers classify with
// errors.Is; only the coarse kind ever reaches a client.
var (
	// ErrMalformedCredential means the Authorization header is missing or
	// does not carry a bearer token.
	ErrMalformedCredential = errors.New("malformed credential")

	// ErrInvalidToken means the session token failed signature, audience or
	// shape validation.
	ErrInvalidToken = errors.New("invalid session token")

	// ErrExpiredToken means the session token is past its expiry claim. The
	// client must obtain a fresh token.
	ErrExpiredToken = errors.New("session token expired")

	// ErrExchangeFailed means the remote token exchange call failed. The
	// token itself may still be valid; the caller may retry.
	ErrExchangeFailed = errors.New("token exchange failed")

	// ErrStoreUnavailable means a persistence operation failed.
	ErrStoreUnavailable = errors.New("store unavailable")
)
