package entrez

import (
	"context"
	"errors"
	"fmt"
)

// ErrorClass represents a classification of lookup errors.
type ErrorClass string

const (
	// ClassRateLimit represents the payload-embedded eutils rate limit
	// signal. It is consumed inside the client and never escapes it.
	ClassRateLimit ErrorClass = "rate_limit"

	// ClassNetwork represents connection and timeout errors.
	ClassNetwork ErrorClass = "network"

	// ClassServer represents upstream 5xx and 429 responses.
	ClassServer ErrorClass = "server"

	// ClassPayload represents malformed or unexpected response payloads,
	// including non-retriable 4xx responses.
	ClassPayload ErrorClass = "payload"
)

// APIError represents a failed eutils lookup with additional context.
type APIError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("entrez %s error (%s, status %d): %s: %v",
			e.Class, e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("entrez %s error (%s, status %d): %s",
		e.Class, e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *APIError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether an error warrants a term-level retry.
// Network failures, timeouts, and upstream server errors are transient;
// payload errors and anything unclassified abort the term immediately.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Class {
		case ClassNetwork, ClassServer:
			return true
		}
	}
	return false
}
