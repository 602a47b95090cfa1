package application

import "errors"

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrConflict is returned when an operation would violate a state
	// constraint, such as deleting a rule that still has instances.
	ErrConflict = errors.New("application: conflict")
	// ErrInvalidTransition is returned when a session status change is not
	// allowed from the current status.
	ErrInvalidTransition = errors.New("application: invalid status transition")
	// ErrEntitlementExpired is returned when a join credential is requested
	// for an entitlement with no remaining lifetime.
	ErrEntitlementExpired = errors.New("application: entitlement expired")
)

// ValidationError captures field level validation issues that callers can
// surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}
