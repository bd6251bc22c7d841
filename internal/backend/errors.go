package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrBadCredentials is returned by Login when the backend rejects
	// the username/password pair.
	ErrBadCredentials = errors.New("incorrect credentials")

	// ErrUnauthorized is returned by any authenticated call answered
	// with 401. The stored session has already been cleared by the time
	// the caller sees it.
	ErrUnauthorized = errors.New("session rejected")

	// ErrAddressNotFound is returned by GeocodeAddress when the address
	// cannot be resolved.
	ErrAddressNotFound = errors.New("address not found")
)

// APIError represents an unexpected response from the station backend.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend error (%d): %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new backend API error
func NewAPIError(statusCode int, message string, err error) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}
