package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopThisHat/storytopia-api/internal/auth"
	"github.com/TopThisHat/storytopia-api/internal/blob"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
	"github.com/TopThisHat/storytopia-api/internal/usecase"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// stubUserRepo implements domain.UserRepository with only the methods the
// routes under test reach. Anything else panics on the nil embedded value.
type stubUserRepo struct {
	domain.UserRepository
	users map[string]*domain.User
	err   error
}

func (s *stubUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user", id)
	}
	return u, nil
}

type stubStoryRepo struct {
	domain.StoryRepository
	stories map[string]*domain.Story
}

func (s *stubStoryRepo) GetByID(_ context.Context, id string) (*domain.Story, error) {
	st, ok := s.stories[id]
	if !ok {
		return nil, domain.NotFound("story", id)
	}
	return st, nil
}

func (s *stubStoryRepo) ListRecentPublic(_ context.Context, limit, offset int) ([]*domain.Story, error) {
	var out []*domain.Story
	for _, st := range s.stories {
		if !st.Private {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *stubStoryRepo) AddLike(_ context.Context, storyID, userID string) error {
	s.stories[storyID].Likes++
	return nil
}

type memObjects map[string][]byte

func (m memObjects) HeadObject(_ context.Context, key string) (*blob.ObjectInfo, error) {
	if strings.Contains(key, "..") {
		return nil, domain.Invalidf("object key %q is not allowed", key)
	}
	data, ok := m[key]
	if !ok {
		return nil, domain.NotFound("image", key)
	}
	return &blob.ObjectInfo{Key: key, Size: int64(len(data)), ContentType: "image/png", LastModified: time.Unix(0, 0)}, nil
}

func (m memObjects) GetObject(_ context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m[key])), nil
}

type routerFixture struct {
	handler  http.Handler
	users    *stubUserRepo
	stories  *stubStoryRepo
	verifier *auth.Verifier
}

func newRouterFixture(t *testing.T, checks ...HealthCheck) *routerFixture {
	t.Helper()

	logg := logger.Discard()
	users := &stubUserRepo{users: map[string]*domain.User{
		"u1": {ID: "u1", Username: "ann", Email: "ann@example.com"},
		"u2": {ID: "u2", Username: "bob", Email: "bob@example.com"},
	}}
	stories := &stubStoryRepo{stories: map[string]*domain.Story{
		"pub":  {ID: "pub", AuthorID: "u1", Title: "Moon", Pages: []string{"p1"}},
		"priv": {ID: "priv", AuthorID: "u1", Title: "Diary", Private: true},
	}}

	userSvc := usecase.NewUserService(users, stories, nil, logg)
	storySvc := usecase.NewStoryService(stories, users, nil, logg)
	verifier := auth.NewVerifier(testSecret, "storytopia")

	cfg := DefaultRouterConfig(logg, defaultTable(t), verifier)
	cfg.RateLimitPerSecond = 0
	cfg.EnableMetrics = false

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := NewRouter(ctx, cfg, Handlers{
		Users:   NewUserHandler(userSvc),
		Stories: NewStoryHandler(storySvc),
		Health:  NewHealthHandler("test", checks...),
		Assets:  NewAssetHandler(memObjects{"images/pub/scene_1_1.png": []byte("png")}),
	})

	return &routerFixture{handler: h, users: users, stories: stories, verifier: verifier}
}

func (f *routerFixture) do(t *testing.T, method, path, userID string, body string) *httptest.ResponseRecorder {
	t.Helper()

	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		token, err := f.verifier.IssueToken(userID, userID+"@example.com", time.Hour)
		require.NoError(t, err)
		r.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)
	return rec
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRouter_ReadyReportsUnavailable(t *testing.T) {
	f := newRouterFixture(t, HealthCheck{Name: "postgres", Check: func(context.Context) error {
		return errors.New("dial tcp 10.1.2.3:5432: connection refused")
	}})

	rec := f.do(t, http.MethodGet, "/ready", "", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "10.1.2.3")
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	f := newRouterFixture(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"malformed", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			f.handler.ServeHTTP(rec, r)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			resp := decodeEnvelope(t, rec)
			assert.Equal(t, "UNAUTHENTICATED", resp.Error.Code)
			assert.Equal(t, "Authentication required", resp.Error.Message)
		})
	}
}

func TestRouter_Me(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/users/me", "u1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"ann"`)
}

func TestRouter_MeWithoutProfile(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/api/users/me", "ghost", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "user ghost not found", resp.Error.Message)
}

func TestRouter_StoreOutageIsGeneric(t *testing.T) {
	f := newRouterFixture(t)
	f.users.err = domain.Unavailable("userRepo.GetByID", errors.New("pgx: conn busy"))

	rec := f.do(t, http.MethodGet, "/api/users/me", "u1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	assert.Equal(t, "A required service is temporarily unavailable", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "pgx")
}

func TestRouter_UndeclaredKindIsFault(t *testing.T) {
	f := newRouterFixture(t)
	// GET /api/users/me never answers Conflict
	f.users.err = domain.Conflict("Username already exists")

	rec := f.do(t, http.MethodGet, "/api/users/me", "u1", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeEnvelope(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "Username")
}

func TestRouter_Stories(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("list rejects oversized page", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories?page_size=500", "u2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "page size must be between 1 and 50")
	})

	t.Run("list rejects explicit zero page", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories?page=0", "u2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("list rejects overflowing page", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories?page=9223372036854775807&page_size=10", "u2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
	})

	t.Run("list rejects malformed page", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories?page=two", "u2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list public", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories", "u2", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"title":"Moon"`)
		assert.NotContains(t, rec.Body.String(), "Diary")
	})

	t.Run("get missing story", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories/story/0", "u2", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "story 0 not found", decodeEnvelope(t, rec).Error.Message)
	})

	t.Run("get private story of another author", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories/story/priv", "u2", "")
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "You do not have access to this story", decodeEnvelope(t, rec).Error.Message)
	})

	t.Run("author reads private story", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories/story/priv", "u1", "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("like hides private story", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/stories/story/priv/like", "u2", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("like public story", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/stories/story/pub/like", "u2", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, f.stories.stories["pub"].Likes)
	})

	t.Run("references without search backend", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories/story/pub/references", "u2", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "SERVICE_UNAVAILABLE", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("references limit out of range", func(t *testing.T) {
		rec := f.do(t, http.MethodGet, "/api/stories/story/pub/references?limit=11", "u2", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("generate needs a prompt", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/stories/generate", "u2", `{"prompt":"","style":"watercolor"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_INPUT", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("create rejects unknown fields", func(t *testing.T) {
		rec := f.do(t, http.MethodPost, "/api/stories/story", "u2", `{"title":"x","author_id":"u1"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_RejectsNonJSONBody(t *testing.T) {
	f := newRouterFixture(t)
	token, err := f.verifier.IssueToken("u1", "", time.Hour)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/api/stories/story", strings.NewReader("title=x"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, r)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestRouter_Assets(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/assets/images/pub/scene_1_1.png", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/assets/images/pub/missing.png", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	f := newRouterFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", decodeEnvelope(t, rec).Error.Code)
}
