package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors, matched with errors.Is. APIError unwraps to these.
var (
	// ErrUnauthorized means the service rejected the x-service-token.
	ErrUnauthorized = errors.New("listingsearch: unauthorized")

	// ErrUnavailable means the service or one of its dependencies
	// (encoder provider, vector store) is down.
	ErrUnavailable = errors.New("listingsearch: service unavailable")
)

// APIError is a non-2xx answer from the service, with the error message
// the service put in the body.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("listingsearch: %s (status %d)", e.Message, e.Status)
}

// Unwrap maps well-known statuses onto sentinel errors so callers can use
// errors.Is without looking at status codes.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return ErrUnavailable
	}
	return nil
}
