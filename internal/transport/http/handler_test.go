package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

func newTestBoundary(t *testing.T) *Boundary {
	t.Helper()
	return NewBoundary(defaultTable(t), logger.Discard())
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestEndpoint_Success(t *testing.T) {
	b := newTestBoundary(t)
	h := b.Endpoint(func(w http.ResponseWriter, r *http.Request) error {
		respondJSON(w, http.StatusCreated, map[string]string{"id": "s1"})
		return nil
	})

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
}

func TestEndpoint_TranslatesDeclaredKind(t *testing.T) {
	b := newTestBoundary(t)
	h := b.Endpoint(func(w http.ResponseWriter, r *http.Request) error {
		return domain.Wrap(domain.NotFound("story", "0"), "StoryService.GetStory")
	}, domain.KindNotFound, domain.KindPermissionDenied)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	assert.Equal(t, "story 0 not found", resp.Error.Message)
}

func TestEndpoint_UndeclaredKindIsInternal(t *testing.T) {
	b := newTestBoundary(t)
	h := b.Endpoint(func(w http.ResponseWriter, r *http.Request) error {
		return domain.Conflict("Username already exists")
	}, domain.KindNotFound)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.Equal(t, "An internal error occurred", resp.Error.Message)
}

func TestEndpoint_PlainErrorIsInternal(t *testing.T) {
	b := newTestBoundary(t)
	h := b.Endpoint(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("secret connection string leaked")
	}, domain.Kinds()...)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRecover_RespondsWithFault(t *testing.T) {
	table := defaultTable(t)
	h := Recover(table, logger.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("nil map write")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "nil map")
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"title":"Moon"}`, ""},
		{"empty", ``, "request body is required"},
		{"malformed", `{"title":`, "request body is not valid JSON"},
		{"unknown field", `{"title":"Moon","extra":1}`, `request body has unknown field "extra"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(r, &p)
			if tt.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "Moon", p.Title)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalid)
			de, ok := domain.AsError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantErr, de.Detail())
		})
	}
}

func TestDecodeJSON_TooLarge(t *testing.T) {
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"title":"`+strings.Repeat("a", 64)+`"}`))
	r.Body = http.MaxBytesReader(rec, r.Body, 16)

	var p struct {
		Title string `json:"title"`
	}
	err := decodeJSON(r, &p)

	require.Error(t, err)
	assert.Equal(t, domain.KindInvalid, domain.KindOf(err))
	assert.Contains(t, err.Error(), "16 bytes")
}

func TestParseIntQueryParam(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&size=abc", nil)

	page, err := parseIntQueryParam(r, "page", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	limit, err := parseIntQueryParam(r, "limit", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, limit)

	_, err = parseIntQueryParam(r, "size", 10)
	assert.ErrorIs(t, err, domain.ErrInvalid)
}
