// Package apierror defines the classified error model shared by the API
// client, the account service, and the list controllers. Callers branch on
// Kind rather than on raw HTTP status codes.
package apierror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure into one of the categories the rest of the
// client understands. Unauthorized is special: it always forces a session
// teardown and is never retried.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindValidationFailed   Kind = "validation_failed"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindFetchFailed        Kind = "fetch_failed"
	KindMutationFailed     Kind = "mutation_failed"
)

// Error is a classified API or validation failure. Fields holds per-field
// messages for validation errors, keyed by the wire field name.
type Error struct {
	Kind       Kind
	Message    string
	Fields     map[string]string
	StatusCode int
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// NewValidation builds a field-scoped validation error.
func NewValidation(fields map[string]string) *Error {
	return &Error{
		Kind:    KindValidationFailed,
		Message: "validation failed",
		Fields:  fields,
	}
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return fmt.Sprintf("%s: %s", e.Kind, strings.Join(parts, "; "))
}

// UserMessage returns the first field-level message if one is present,
// otherwise the general message. Field order follows sorted field names so
// the choice is deterministic.
func (e *Error) UserMessage() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return e.Fields[names[0]]
}

// From extracts the classified error from err's chain, or wraps err as a
// generic fetch failure when it carries no classification.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindFetchFailed, Message: err.Error()}
}

// KindOf returns the classification of err, or an empty Kind when err is nil
// or unclassified.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
