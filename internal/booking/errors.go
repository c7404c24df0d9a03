package booking

import "fmt"

// ValidationError rejects malformed input before any resource is touched.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// NotFoundError marks a referenced catalog record as absent or inactive.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ConflictError is returned when a resource is unavailable at commit time or
// a cancel hits an already-cancelled booking. Availability, when set, carries
// the granular result so callers can offer a waitlist join without a second
// round trip.
type ConflictError struct {
	Reason       string
	Availability *AvailabilityResult
}

func (e ConflictError) Error() string {
	return e.Reason
}

// TransientError wraps lock or storage failures. The whole operation is safe
// to retry because commits are all-or-nothing.
type TransientError struct {
	Op  string
	Err error
}

func (e TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e TransientError) Unwrap() error {
	return e.Err
}
