package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies why an operation failed.
// The boundary layer keys its translation table on Kind, so every
// value declared here must have exactly one entry in that table.
type Kind uint8

const (
	// KindFault is the zero value: an unclassified failure.
	KindFault Kind = iota
	KindInvalid
	KindNotFound
	KindConflict
	KindUnauthenticated
	KindPermissionDenied
	KindUnavailable
)

var kindNames = [...]string{
	KindFault:            "fault",
	KindInvalid:          "invalid",
	KindNotFound:         "not_found",
	KindConflict:         "conflict",
	KindUnauthenticated:  "unauthenticated",
	KindPermissionDenied: "permission_denied",
	KindUnavailable:      "unavailable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Kinds returns every declared kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range kindNames {
		out[i] = Kind(i)
	}
	return out
}

// Error is the failure value that crosses the access and logic layers.
// It is immutable: Wrap and Translate return new values.
type Error struct {
	kind     Kind
	resource string
	id       string
	detail   string
	op       string
	cause    error
}

// Kind-only sentinels. errors.Is(err, ErrNotFound) reports true for any
// *Error of kind NotFound regardless of its context.
var (
	ErrInvalid          = &Error{kind: KindInvalid}
	ErrNotFound         = &Error{kind: KindNotFound}
	ErrConflict         = &Error{kind: KindConflict}
	ErrUnauthenticated  = &Error{kind: KindUnauthenticated}
	ErrPermissionDenied = &Error{kind: KindPermissionDenied}
	ErrUnavailable      = &Error{kind: KindUnavailable}
	ErrFault            = &Error{kind: KindFault}
)

// Infrastructure sentinels. These never leave the access layer's callers.
var (
	// ErrCacheMiss is returned by caches when a key is absent.
	ErrCacheMiss = errors.New("cache miss")
)

// NotFound reports that resource id does not exist.
func NotFound(resource, id string) *Error {
	return &Error{kind: KindNotFound, resource: resource, id: id}
}

// Invalid reports a caller mistake; detail is safe to show to the caller.
func Invalid(detail string) *Error {
	return &Error{kind: KindInvalid, detail: detail}
}

// Invalidf is Invalid with formatting.
func Invalidf(format string, args ...any) *Error {
	return Invalid(fmt.Sprintf(format, args...))
}

// Conflict reports a uniqueness or state conflict; detail is caller-safe.
func Conflict(detail string) *Error {
	return &Error{kind: KindConflict, detail: detail}
}

// Unauthenticated reports missing or invalid credentials.
func Unauthenticated(detail string) *Error {
	return &Error{kind: KindUnauthenticated, detail: detail}
}

// PermissionDenied reports that the caller may not act on resource id.
func PermissionDenied(resource, id string) *Error {
	return &Error{kind: KindPermissionDenied, resource: resource, id: id}
}

// Unavailable reports that a store or external service could not serve op.
func Unavailable(op string, cause error) *Error {
	return &Error{kind: KindUnavailable, op: op, cause: cause}
}

// Fault reports an unclassified failure in op.
func Fault(op string, cause error) *Error {
	return &Error{kind: KindFault, op: op, cause: cause}
}

func (e *Error) Kind() Kind       { return e.kind }
func (e *Error) Resource() string { return e.resource }
func (e *Error) ID() string       { return e.id }
func (e *Error) Detail() string   { return e.detail }
func (e *Error) Op() string       { return e.op }
func (e *Error) Unwrap() error    { return e.cause }

// Error renders the full internal description, cause included.
// It is meant for logs, never for responses.
func (e *Error) Error() string {
	var b strings.Builder
	if e.op != "" {
		b.WriteString(e.op)
		b.WriteString(": ")
	}
	b.WriteString(e.kind.String())
	if e.resource != "" {
		b.WriteString(" ")
		b.WriteString(e.resource)
		if e.id != "" {
			fmt.Fprintf(&b, " %q", e.id)
		}
	}
	if e.detail != "" {
		b.WriteString(": ")
		b.WriteString(e.detail)
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

// Is matches kind-only sentinels (no context set) by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.resource == "" && t.id == "" && t.detail == "" && t.op == "" && t.cause == nil {
		return e.kind == t.kind
	}
	return e == t
}

// KindOf returns the kind of the outermost *Error in err's chain.
// Errors that are not domain errors are faults.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.kind
	}
	return KindFault
}

// AsError extracts the outermost *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	ok := errors.As(err, &de)
	return de, ok
}

// Wrap prefixes op onto err's trail, keeping its kind and caller context.
// A non-domain err becomes a Fault.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	de, ok := AsError(err)
	if !ok {
		return Fault(op, err)
	}
	cp := *de
	if cp.op != "" {
		cp.op = op + ": " + cp.op
	} else {
		cp.op = op
	}
	return &cp
}

// Translate re-kinds err when its kind is from, keeping context.
// Other errors are returned unchanged.
func Translate(err error, from, to Kind) error {
	de, ok := AsError(err)
	if !ok || de.kind != from {
		return err
	}
	cp := *de
	cp.kind = to
	return &cp
}
