// Package odata executes batch round trips against an OData service:
// it obtains the envelope-level authorization, encodes the operations,
// POSTs them to the $batch endpoint, and decodes the multipart reply.
package odata

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for transport-level HTTP status classification.
// These describe the batch POST itself, not the individual operations
// inside it; per-operation statuses come back in batch.Response.
var (
	ErrBadRequest   = errors.New("odata: bad request")
	ErrUnauthorized = errors.New("odata: unauthorized")
	ErrForbidden    = errors.New("odata: forbidden")
	ErrNotFound     = errors.New("odata: not found")
	ErrThrottled    = errors.New("odata: throttled")
	ErrServerError  = errors.New("odata: server error")
)

// TransportError wraps a sentinel error with the HTTP status code and
// response body of a failed batch POST.
type TransportError struct {
	StatusCode int
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("odata: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}
