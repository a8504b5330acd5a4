package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Kind tags which variant a Result holds.
type Kind int

const (
	KindOK Kind = iota
	KindFieldValidation
	KindGeneral
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindFieldValidation:
		return "field_validation"
	case KindGeneral:
		return "general"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Response is the type-erased view of a Result. The wizard controller
// consumes submissions through it.
type Response interface {
	Kind() Kind
	FieldErrors() map[string]string
	Message() string
}

// Result is OK(value) | FieldValidation(errors) | General(message).
type Result[T any] struct {
	kind        Kind
	value       T
	fieldErrors map[string]string
	message     string
}

// OK wraps a successful value.
func OK[T any](v T) Result[T] {
	return Result[T]{kind: KindOK, value: v}
}

// FieldValidation builds a field-level failure. An empty map yields a General
// result instead: no field is implicated.
func FieldValidation[T any](errs map[string]string, message string) Result[T] {
	if len(errs) == 0 {
		return General[T](message)
	}
	copied := make(map[string]string, len(errs))
	for k, v := range errs {
		copied[k] = v
	}
	return Result[T]{kind: KindFieldValidation, fieldErrors: copied, message: message}
}

// General builds a failure not scoped to any field.
func General[T any](message string) Result[T] {
	return Result[T]{kind: KindGeneral, message: message}
}

// FromError converts a transport error into a General result.
func FromError[T any](err error) Result[T] {
	return General[T](ShortMessage(err))
}

// Kind reports which variant r holds.
func (r Result[T]) Kind() Kind { return r.kind }

// Value is the resource for an OK result, the zero value otherwise.
func (r Result[T]) Value() T { return r.value }

// IsOK reports whether r is OK.
func (r Result[T]) IsOK() bool { return r.kind == KindOK }

// Message is the human-readable failure text, possibly empty.
func (r Result[T]) Message() string { return r.message }

// FieldErrors returns the field-keyed messages, nil unless Kind is
// KindFieldValidation.
func (r Result[T]) FieldErrors() map[string]string {
	return r.fieldErrors
}

// Problem is the backend's structured failure body.
type Problem struct {
	Message string      `json:"message"`
	Errors  FieldErrors `json:"errors,omitempty"`
}

// FieldErrors accepts either a single message or a list of messages per
// field. Lists are joined with "; ".
type FieldErrors map[string]string

// UnmarshalJSON implements json.Unmarshaler
func (f *FieldErrors) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(FieldErrors, len(raw))
	for field, msg := range raw {
		msg = bytes.TrimSpace(msg)
		switch {
		case len(msg) == 0 || bytes.Equal(msg, []byte("null")):
			continue
		case msg[0] == '[':
			var list []string
			if err := json.Unmarshal(msg, &list); err != nil {
				return fmt.Errorf("field %q: %w", field, err)
			}
			if len(list) > 0 {
				out[field] = strings.Join(list, "; ")
			}
		default:
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("field %q: %w", field, err)
			}
			out[field] = s
		}
	}
	*f = out
	return nil
}

// Decide turns a raw HTTP status and body into a Result.
func Decide[T any](status int, body []byte) Result[T] {
	if status >= 200 && status < 300 {
		var v T
		if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
			return OK(v)
		}
		if err := json.Unmarshal(body, &v); err != nil {
			return FromError[T](NewParseError("failed to parse response", err))
		}
		return OK(v)
	}

	var p Problem
	if err := json.Unmarshal(body, &p); err != nil {
		return FromError[T](NewHTTPError(status, http.StatusText(status)))
	}
	if p.Message == "" && len(p.Errors) == 0 {
		return FromError[T](NewHTTPError(status, http.StatusText(status)))
	}
	return FieldValidation[T](p.Errors, p.Message)
}
