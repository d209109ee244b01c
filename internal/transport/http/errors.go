package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/TopThisHat/storytopia-api/internal/domain"
)

// TransportError is what a caller sees when a request fails.
// It is built only by ErrorTable.Translate.
type TransportError struct {
	Status  int
	Code    string
	Message string
}

// ErrorMapping maps one domain kind to a transport error.
//
// Message may reference the failing error's caller-safe context with
// {resource}, {id} and {detail}. Nothing else of the error reaches the
// response.
type ErrorMapping struct {
	Kind    domain.Kind
	Status  int
	Code    string
	Message string
}

// DefaultErrorMappings is the response contract of the API.
func DefaultErrorMappings() []ErrorMapping {
	return []ErrorMapping{
		{domain.KindInvalid, http.StatusBadRequest, "INVALID_INPUT", "{detail}"},
		{domain.KindUnauthenticated, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication required"},
		{domain.KindPermissionDenied, http.StatusForbidden, "PERMISSION_DENIED", "You do not have access to this {resource}"},
		{domain.KindNotFound, http.StatusNotFound, "NOT_FOUND", "{resource} {id} not found"},
		{domain.KindConflict, http.StatusConflict, "CONFLICT", "{detail}"},
		{domain.KindUnavailable, http.StatusInternalServerError, "SERVICE_UNAVAILABLE", "A required service is temporarily unavailable"},
		{domain.KindFault, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred"},
	}
}

// ErrorTable translates domain errors into transport errors.
// It is read-only after NewErrorTable returns.
type ErrorTable struct {
	byKind map[domain.Kind]ErrorMapping
	fault  ErrorMapping
}

// NewErrorTable builds a table that must cover every domain kind exactly
// once. The Fault mapping may only use fixed text.
func NewErrorTable(mappings []ErrorMapping) (*ErrorTable, error) {
	declared := make(map[domain.Kind]bool)
	for _, k := range domain.Kinds() {
		declared[k] = true
	}

	byKind := make(map[domain.Kind]ErrorMapping, len(mappings))
	for _, m := range mappings {
		if !declared[m.Kind] {
			return nil, fmt.Errorf("error table: mapping for undeclared kind %s", m.Kind)
		}
		if _, dup := byKind[m.Kind]; dup {
			return nil, fmt.Errorf("error table: kind %s mapped more than once", m.Kind)
		}
		if m.Status < 400 || m.Status > 599 {
			return nil, fmt.Errorf("error table: kind %s has non-error status %d", m.Kind, m.Status)
		}
		if m.Code == "" || m.Message == "" {
			return nil, fmt.Errorf("error table: kind %s needs a code and a message", m.Kind)
		}
		byKind[m.Kind] = m
	}

	var missing []string
	for _, k := range domain.Kinds() {
		if _, ok := byKind[k]; !ok {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("error table: no mapping for kinds %s", strings.Join(missing, ", "))
	}

	fault := byKind[domain.KindFault]
	if strings.Contains(fault.Message, "{") {
		return nil, fmt.Errorf("error table: fault message must be fixed text")
	}

	return &ErrorTable{byKind: byKind, fault: fault}, nil
}

// Translate maps err to the transport error callers see. Kinds outside
// declared, and errors that are not domain errors, become the fault.
func (t *ErrorTable) Translate(err error, declared KindSet) TransportError {
	de, ok := domain.AsError(err)
	if !ok || !declared.Has(de.Kind()) {
		return t.render(t.fault, nil)
	}
	return t.render(t.byKind[de.Kind()], de)
}

// Fault is the transport error for failures with no domain meaning.
func (t *ErrorTable) Fault() TransportError {
	return t.render(t.fault, nil)
}

func (t *ErrorTable) render(m ErrorMapping, de *domain.Error) TransportError {
	msg := m.Message
	if de != nil {
		resource := de.Resource()
		if resource == "" {
			resource = "resource"
		}
		msg = strings.NewReplacer(
			"{resource}", resource,
			"{id}", de.ID(),
			"{detail}", de.Detail(),
		).Replace(msg)
		msg = strings.Join(strings.Fields(msg), " ")
		if msg == "" {
			msg = m.Code
		}
	}
	return TransportError{Status: m.Status, Code: m.Code, Message: msg}
}

// KindSet is the set of kinds an endpoint translates.
type KindSet uint32

// Kinds builds a KindSet.
func Kinds(kinds ...domain.Kind) KindSet {
	var s KindSet
	for _, k := range kinds {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in s.
func (s KindSet) Has(k domain.Kind) bool {
	return s&(1<<k) != 0
}
