package authz

import "errors"

// The error taxonomy every verification and evaluation outcome resolves to.
// These are returned as typed results, never panics; any ambiguous or
// undecidable outcome must map to a denial, never an implicit grant.
var (
	// ErrUnauthorized: bad signature, unknown or revoked signing key.
	ErrUnauthorized = errors.New("authz: unauthorized")
	// ErrExpired: token past expiry or issued in the future.
	ErrExpired = errors.New("authz: token expired")
	// ErrForbidden: inactive client, suspended or deleted organization,
	// scope or role mismatch.
	ErrForbidden = errors.New("authz: forbidden")
	// ErrNotFound: deleted or unknown vault. A deleted vault reads the same
	// as one that never existed.
	ErrNotFound = errors.New("authz: not found")
	// ErrUnavailable: trust or tuple store timed out; retryable.
	ErrUnavailable = errors.New("authz: unavailable")
	// ErrInvalidInput: malformed request payload.
	ErrInvalidInput = errors.New("authz: invalid input")
)
