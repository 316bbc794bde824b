package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies catalog failures. Each kind maps to one HTTP status.
type Kind int

const (
	KindUpstreamFailure Kind = iota
	KindInvalidIdentifier
	KindNotFound
	KindInvalidValue
	KindReferentialConflict
	KindOwnershipConflict
	KindDanglingReference
	KindUnauthenticated
	KindForbidden
)

var kindCodes = map[Kind]string{
	KindUpstreamFailure:     "UPSTREAM_FAILURE",
	KindInvalidIdentifier:   "INVALID_IDENTIFIER",
	KindNotFound:            "NOT_FOUND",
	KindInvalidValue:        "INVALID_VALUE",
	KindReferentialConflict: "REFERENTIAL_CONFLICT",
	KindOwnershipConflict:   "OWNERSHIP_CONFLICT",
	KindDanglingReference:   "DANGLING_REFERENCE",
	KindUnauthenticated:     "UNAUTHORIZED",
	KindForbidden:           "FORBIDDEN",
}

// String returns the envelope code of k.
func (k Kind) String() string {
	if code, ok := kindCodes[k]; ok {
		return code
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Error is the failure type returned by every catalog operation. Details maps
// field names to their violation when several inputs were rejected at once.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of the message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrUpstreamFailure     = &Error{Kind: KindUpstreamFailure}
	ErrInvalidIdentifier   = &Error{Kind: KindInvalidIdentifier}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidValue        = &Error{Kind: KindInvalidValue}
	ErrReferentialConflict = &Error{Kind: KindReferentialConflict}
	ErrOwnershipConflict   = &Error{Kind: KindOwnershipConflict}
	ErrDanglingReference   = &Error{Kind: KindDanglingReference}
	ErrUnauthenticated     = &Error{Kind: KindUnauthenticated}
	ErrForbidden           = &Error{Kind: KindForbidden}
)

// KindOf reports the kind carried by err; anything unclassified is an
// upstream failure.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUpstreamFailure
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// InvalidValue builds an InvalidValue error from per-field violations.
func InvalidValue(details map[string]string) *Error {
	return &Error{Kind: KindInvalidValue, Message: joinDetails(details), Details: details}
}

func upstream(err error) *Error {
	return &Error{Kind: KindUpstreamFailure, Message: err.Error(), Err: err}
}

// withContext prefixes the message of err with the operation being run.
func withContext(prefix string, err error) error {
	if err == nil {
		return nil
	}
	var ce *Error
	if !errors.As(err, &ce) {
		ce = upstream(err)
	}
	out := *ce
	out.Message = prefix + ": " + ce.Message
	return &out
}

func joinDetails(details map[string]string) string {
	keys := sortedKeys(details)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+details[k])
	}
	return strings.Join(parts, "\n")
}
