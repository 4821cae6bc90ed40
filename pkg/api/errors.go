package api

import (
	"fmt"
	"time"
)

// TransportError indicates the network call itself could not complete.
// It is never retried by this layer.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// RateLimitedError indicates the endpoint is rate limited, either by a 429
// response or by an active local cooldown. It carries the remaining wait
// and is surfaced without retry.
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s: retry after %s", e.Endpoint, e.RetryAfter)
}

// AuthorizationError indicates credentials are missing or the single
// refresh+retry attempt is exhausted. Stored credentials are cleared
// before it surfaces; the caller must re-authenticate.
type AuthorizationError struct {
	Err error
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authorization failed: %v", e.Err)
	}
	return "authorization failed"
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *AuthorizationError) Unwrap() error {
	return e.Err
}

// ResponseError represents any other non-2xx response, carrying the
// server-supplied message and code where present.
type ResponseError struct {
	StatusCode int
	Code       string
	Message    string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}
