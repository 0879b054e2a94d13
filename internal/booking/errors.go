package booking

import "fmt"

// The engine reports violations as typed errors so the HTTP layer can map
// them to status codes and callers can tell "re-fetch and retry the
// workflow" (conflict) apart from "retry the same request later"
// (dependency).

// ValidationError marks malformed input: bad dates, missing fields, a
// rating out of range.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrorf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError marks an actor lacking the role or ownership for the
// requested transition.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }

func authorizationErrorf(format string, args ...interface{}) error {
	return &AuthorizationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks an entity that is not in the required state for the
// transition. The caller may re-fetch state and retry the workflow.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

func conflictErrorf(format string, args ...interface{}) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError marks a missing booking, vehicle, driver or user.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string { return e.Entity + " not found" }

// DependencyError marks a distance service or charge provider failure. The
// same request may be retried later.
type DependencyError struct {
	Service string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// InternalError marks a persistence failure after validation passed. The
// surrounding transaction has been rolled back; no partial writes persist.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal error: " + e.Err.Error() }

func (e *InternalError) Unwrap() error { return e.Err }
