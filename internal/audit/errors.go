package audit

import (
	"errors"
	"fmt"
)

// ErrInvalidURL rejects malformed input before anything is enqueued.
var ErrInvalidURL = errors.New("invalid url")

// ErrNotFound is returned by stores and caches for absent keys.
var ErrNotFound = errors.New("not found")

// FetchError marks a failure to retrieve the target page itself. The initial
// page fetch failing aborts the whole task; probe fetches degrade instead.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExternalServiceError marks a failure of an optional upstream such as the
// page-speed grading API. Callers fall back to local heuristics.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// PersistenceError marks a cache or record-store write failure. Workers
// re-raise it so the queue's retry policy re-attempts the whole task.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
