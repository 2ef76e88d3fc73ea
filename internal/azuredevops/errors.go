// Copyright 2025 James Ross
package azuredevops

import "fmt"

// Kind classifies an error raised by the work-tracking HTTP client so
// callers can branch on it without string matching, per the redesign
// guidance to replace exception-driven control flow with a result value.
type Kind string

const (
	KindAuth        Kind = "auth"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindTransient   Kind = "transient"
	KindCancelled   Kind = "cancelled"
	KindUnexpected  Kind = "unexpected"
)

// ClassifiedError is satisfied by every error type this package returns.
type ClassifiedError interface {
	error
	Kind() Kind
}

// AuthError is returned for 401/403 responses. Terminal: never retried.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string { return fmt.Sprintf("authentication failed (status %d)", e.StatusCode) }
func (e *AuthError) Kind() Kind    { return KindAuth }

// NotFoundError is returned for 404 responses. Terminal: never retried.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Path) }
func (e *NotFoundError) Kind() Kind    { return KindNotFound }

// RateLimitedError is returned when retries are exhausted while receiving 429s.
type RateLimitedError struct {
	Attempts int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited after %d attempts", e.Attempts)
}
func (e *RateLimitedError) Kind() Kind { return KindRateLimited }

// TransientError is returned when retries are exhausted on 5xx or network errors.
type TransientError struct {
	Attempts int
	Cause    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure after %d attempts: %v", e.Attempts, e.Cause)
}
func (e *TransientError) Unwrap() error { return e.Cause }
func (e *TransientError) Kind() Kind    { return KindTransient }

// CancelledError is returned when the caller's context was cancelled
// mid-request or mid-retry.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string { return fmt.Sprintf("cancelled: %v", e.Cause) }
func (e *CancelledError) Unwrap() error { return e.Cause }
func (e *CancelledError) Kind() Kind    { return KindCancelled }

// UnexpectedStatusError is returned for any 4xx other than 401/403/404/429,
// which the upstream contract treats as terminal but does not name.
type UnexpectedStatusError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
func (e *UnexpectedStatusError) Kind() Kind { return KindUnexpected }
