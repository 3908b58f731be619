package quizgate

import (
	"errors"
	"fmt"
)

// ErrNoRoute is returned when no routing table entry owns a path.
var ErrNoRoute = errors.New("no route")

// UpstreamError is an upstream service answering with a non-2xx status.
// Body keeps the upstream error document ({error, id}) for pass-through.
type UpstreamError struct {
	Service string
	Status  int
	Body    []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("service %s responded %d", e.Service, e.Status)
}

// TimeoutError is an upstream call that exceeded its per-attempt deadline.
// It is never retried.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Service %s timed out", e.Service)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// UnavailableError is a transient transport failure that outlived the retry budget.
type UnavailableError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("Service %s unavailable after %d attempts: %v", e.Service, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// NotFoundError marks an absent primary resource. The message leaves ID out
// so it can be shown to clients as is.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error { return e.Err }

// ValidationError is a missing or malformed request parameter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s is required", e.Field)
}
