package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
}

// APIError represents an error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandlerFunc is an HTTP handler that reports failure by returning it.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Boundary turns handler errors into responses through an ErrorTable.
type Boundary struct {
	table *ErrorTable
	logg  *logger.Logger
}

// NewBoundary creates a Boundary.
func NewBoundary(table *ErrorTable, logg *logger.Logger) *Boundary {
	return &Boundary{table: table, logg: logg}
}

// Endpoint adapts fn to net/http. An error from fn is translated with
// the kinds the endpoint declares; every other kind is a fault.
func (b *Boundary) Endpoint(fn HandlerFunc, kinds ...domain.Kind) http.HandlerFunc {
	declared := Kinds(kinds...)
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			b.fail(w, r, err, declared)
		}
	}
}

// fail translates err, logs the internal detail and writes the response.
func (b *Boundary) fail(w http.ResponseWriter, r *http.Request, err error, declared KindSet) {
	te := b.table.Translate(err, declared)
	kind := domain.KindOf(err)

	log := logger.FromContext(r.Context(), b.logg).WithError(err)
	args := []any{"status", te.Status, "code", te.Code, "path", r.URL.Path}
	if !declared.Has(kind) && kind != domain.KindFault {
		args = append(args, "undeclared_kind", kind.String())
	}
	if te.Status >= 500 {
		log.Error("request failed", args...)
	} else {
		log.Debug("request rejected", args...)
	}

	errorsTranslated.WithLabelValues(kind.String(), strconv.Itoa(te.Status)).Inc()
	respondError(w, te)
}

// respondJSON sends a JSON response with the given status code
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	_ = json.NewEncoder(w).Encode(response)
}

// respondError sends te in the response envelope
func respondError(w http.ResponseWriter, te TransportError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(te.Status)

	response := APIResponse{
		Success: false,
		Error: &APIError{
			Code:    te.Code,
			Message: te.Message,
		},
	}

	_ = json.NewEncoder(w).Encode(response)
}

// parseIntQueryParam parses an integer query parameter. A missing
// parameter yields defaultVal; a malformed one is Invalid.
func parseIntQueryParam(r *http.Request, name string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal, nil
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return 0, domain.Invalidf("%s must be an integer", name)
	}

	return parsed, nil
}

// decodeJSON decodes JSON from request body into the target struct
func decodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return domain.Invalid("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(target); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid("request body is required")
		case errors.As(err, &maxErr):
			return domain.Invalidf("request body must not exceed %d bytes", maxErr.Limit)
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			return domain.Invalidf("request body has %s", strings.TrimPrefix(err.Error(), "json: "))
		default:
			return domain.Invalid("request body is not valid JSON")
		}
	}

	return nil
}
