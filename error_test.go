package serialz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestError(t *testing.T) {
	baseErr := errors.New("something went wrong")

	t.Run("Message Includes Path And Cause", func(t *testing.T) {
		err := &Error{
			Kind:     KindSerializeFailure,
			Err:      baseErr,
			Path:     []Name{"api", "item[3]"},
			Index:    3,
			Duration: 100 * time.Millisecond,
		}

		msg := err.Error()
		if !strings.Contains(msg, "api -> item[3]") {
			t.Errorf("expected path elements joined in error, got: %s", msg)
		}
		if !strings.Contains(msg, "serialize_failure after 100ms") {
			t.Errorf("expected kind and duration in error, got: %s", msg)
		}
		if !strings.Contains(msg, "something went wrong") {
			t.Errorf("expected base error in message, got: %s", msg)
		}
	})

	t.Run("Message Includes Schema", func(t *testing.T) {
		err := &Error{Kind: KindValidationFailure, Schema: "user", Err: baseErr}
		if msg := err.Error(); !strings.Contains(msg, `(schema "user")`) {
			t.Errorf("expected schema in error, got: %s", msg)
		}
	})

	t.Run("Timeout Message", func(t *testing.T) {
		err := &Error{Err: context.DeadlineExceeded, Timeout: true, Duration: time.Second}
		if msg := err.Error(); !strings.Contains(msg, "timed out after 1s") {
			t.Errorf("expected timeout message, got: %s", msg)
		}
		if !err.IsTimeout() {
			t.Error("expected IsTimeout")
		}
	})

	t.Run("Canceled", func(t *testing.T) {
		err := &Error{Err: context.Canceled}
		if !err.IsCanceled() {
			t.Error("expected IsCanceled from the cause")
		}
	})

	t.Run("Sentinels Match Kind", func(t *testing.T) {
		cases := map[ErrorKind]error{
			KindSerializeFailure:   ErrSerialize,
			KindSchemaNotFound:     ErrSchemaNotFound,
			KindValidationFailure:  ErrValidation,
			KindConfigurationError: ErrConfiguration,
		}
		for kind, sentinel := range cases {
			err := &Error{Kind: kind, Err: baseErr}
			if !errors.Is(err, sentinel) {
				t.Errorf("expected %s to match %v", kind, sentinel)
			}
			if !errors.Is(err, baseErr) {
				t.Errorf("expected %s to unwrap to the cause", kind)
			}
		}
		if errors.Is(&Error{Kind: KindSchemaNotFound}, ErrValidation) {
			t.Error("schema-not-found must not match the validation sentinel")
		}
	})

	t.Run("Cause", func(t *testing.T) {
		if (&Error{}).Cause() != "" {
			t.Error("expected empty cause without an underlying error")
		}
		if (&Error{Err: baseErr}).Cause() != "something went wrong" {
			t.Error("expected the underlying message")
		}
	})
}
