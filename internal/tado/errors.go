package tado

import "fmt"

// AuthError is terminal: the refresh token is no longer accepted and the
// operator has to re-authorize. Polling must stop rather than retry.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("tado authentication failed: %v", e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// CommunicationError is transient; the caller keeps its last good snapshot
// and retries on the next scheduled cycle.
type CommunicationError struct {
	Err error
}

func (e *CommunicationError) Error() string { return fmt.Sprintf("tado communication error: %v", e.Err) }
func (e *CommunicationError) Unwrap() error { return e.Err }

// RateLimitError means the API rejected the call with 429. The poller backs
// off until the reported quota recovers.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string { return fmt.Sprintf("tado rate limit exceeded: %v", e.Err) }
func (e *RateLimitError) Unwrap() error { return e.Err }

// ValidationError marks a malformed vendor payload. The affected field is
// treated as absent; it never fails a whole cycle.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tado payload validation failed for %s: %v", e.Field, e.Err)
}
func (e *ValidationError) Unwrap() error { return e.Err }
