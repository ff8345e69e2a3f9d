package bookstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the catalog answers 429.
	ErrRateLimited = errors.New("bookstore: rate limited")
	// ErrNotConfigured is returned when no application id is set.
	ErrNotConfigured = errors.New("bookstore: application id not configured")
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = errors.New("bookstore: temporarily unavailable")
)

// UpstreamError is any other non-2xx answer from the catalog.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("bookstore: status %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps network failures and undecodable bodies.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bookstore %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
