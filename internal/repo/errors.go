package repo

import (
	"errors"
	"fmt"
)

// ErrInvalidBody indicates a success status whose body could not be parsed as
// JSON. Reads fail on it; writes tolerate it.
var ErrInvalidBody = errors.New("response is not JSON")

// ErrNotAuthenticated indicates no base endpoint has been configured yet.
var ErrNotAuthenticated = errors.New("not authenticated: no endpoint configured")

// StatusError reports a non-2xx response from the remote repository.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d for %s", e.Status, e.URL)
}

// RequestError reports a transport-level failure reaching the remote repository.
type RequestError struct {
	URL string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("unable to reach %s: %v", e.URL, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}
