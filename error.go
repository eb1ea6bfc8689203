package serialz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors matched by errors.Is against an *Error of the same kind.
var (
	ErrSerialize      = errors.New("serialize failed")
	ErrSchemaNotFound = errors.New("schema not found")
	ErrValidation     = errors.New("validation failed")
	ErrConfiguration  = errors.New("invalid configuration")
)

// ErrorKind classifies a failure.
type ErrorKind int

// Failure kinds. KindConfigurationError only surfaces at startup.
const (
	KindSerializeFailure ErrorKind = iota
	KindSchemaNotFound
	KindValidationFailure
	KindConfigurationError
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindSerializeFailure:
		return "serialize_failure"
	case KindSchemaNotFound:
		return "schema_not_found"
	case KindValidationFailure:
		return "validation_failure"
	case KindConfigurationError:
		return "configuration_error"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindSchemaNotFound:
		return ErrSchemaNotFound
	case KindValidationFailure:
		return ErrValidation
	case KindConfigurationError:
		return ErrConfiguration
	default:
		return ErrSerialize
	}
}

// Error describes why an item could not be formatted: where it sat in the
// payload, which schema was involved, and the underlying cause.
type Error struct {
	Timestamp time.Time
	Err       error
	Item      any
	Schema    string
	Path      []Name
	Duration  time.Duration
	Index     int
	Kind      ErrorKind
	Timeout   bool
	Canceled  bool
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	if len(e.Path) > 0 {
		b.WriteString(strings.Join(e.Path, " -> "))
		b.WriteByte(' ')
	}
	if e.Schema != "" {
		fmt.Fprintf(&b, "(schema %q) ", e.Schema)
	}

	switch {
	case e.Timeout:
		fmt.Fprintf(&b, "timed out after %v", e.Duration)
	case e.Canceled:
		fmt.Fprintf(&b, "canceled after %v", e.Duration)
	default:
		b.WriteString(e.Kind.String())
		if e.Duration > 0 {
			fmt.Fprintf(&b, " after %v", e.Duration)
		}
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// IsTimeout reports whether the failure was a deadline.
func (e *Error) IsTimeout() bool {
	return e.Timeout || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsCanceled reports whether the failure was a cancellation.
func (e *Error) IsCanceled() bool {
	return e.Canceled || errors.Is(e.Err, context.Canceled)
}

// Cause returns the message of the underlying failure, which may be empty.
func (e *Error) Cause() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func configError(format string, args ...any) error {
	return &Error{
		Kind:  KindConfigurationError,
		Err:   fmt.Errorf(format, args...),
		Index: -1,
	}
}
