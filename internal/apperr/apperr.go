// Package apperr holds the error taxonomy shared by the storefront state
// owners: transport failures, authentication-required rejections,
// validation failures, not-found lookups and uniqueness conflicts.
//
// Lower layers wrap the sentinels with fmt.Errorf("...: %w") so callers
// can branch with errors.Is and surface Message(err) to the user.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrAuthRequired = errors.New("authentication required")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
)

type Kind int

const (
	KindTransport Kind = iota
	KindAuthRequired
	KindValidation
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth_required"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "transport"
	}
}

// ValidationError reports a user-correctable input problem. Field is
// empty when the failure is not tied to a single input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func Validation(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// KindOf classifies err. Anything unrecognised is treated as a transport
// failure.
func KindOf(err error) Kind {
	var validation *ValidationError
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, ErrAuthRequired):
		return KindAuthRequired
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindTransport
	}
}

// Message renders err as a short banner for the user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch KindOf(err) {
	case KindAuthRequired:
		return "Please login to continue."
	case KindValidation:
		var validation *ValidationError
		errors.As(err, &validation)
		return validation.Message
	case KindNotFound:
		return "We couldn't find what you were looking for."
	case KindConflict:
		return "That item is already saved."
	default:
		return "Something went wrong. Please try again."
	}
}
