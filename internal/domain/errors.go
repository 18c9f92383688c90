package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// ValidationError is returned when a document is missing a required field.
type ValidationError struct {
	Collection Collection
	Field      string
	Reason     string
}

func (e ValidationError) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %s: %s", e.Collection, e.Field, e.Reason)
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	if ok {
		return true
	}
	_, ok = target.(*ValidationError)
	return ok
}

var ErrValidation = ValidationError{}

// PermissionDeniedError is returned when a caller-computed permission check failed.
type PermissionDeniedError struct {
	Action string
}

func (e PermissionDeniedError) Error() string {
	if e.Action == "" {
		return "permission denied"
	}
	return fmt.Sprintf("permission denied: %s", e.Action)
}

func (e PermissionDeniedError) Is(target error) bool {
	_, ok := target.(PermissionDeniedError)
	if ok {
		return true
	}
	_, ok = target.(*PermissionDeniedError)
	return ok
}

var ErrPermissionDenied = PermissionDeniedError{}
