package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/TopThisHat/storytopia-api/internal/auth"
	"github.com/TopThisHat/storytopia-api/internal/domain"
	"github.com/TopThisHat/storytopia-api/internal/logger"
)

// RouterConfig holds configuration for the HTTP router
type RouterConfig struct {
	Logger             *logger.Logger
	Errors             *ErrorTable
	Verifier           *auth.Verifier
	EnableCORS         bool
	AllowedOrigins     []string
	RateLimitPerSecond float64 // 0 disables limiting
	RateLimitBurst     int
	MaxBodySize        int64 // in bytes
	GenerationTimeout  time.Duration
	EnableMetrics      bool
}

// DefaultRouterConfig returns sensible defaults
func DefaultRouterConfig(logg *logger.Logger, table *ErrorTable, verifier *auth.Verifier) RouterConfig {
	return RouterConfig{
		Logger:             logg,
		Errors:             table,
		Verifier:           verifier,
		EnableCORS:         true,
		AllowedOrigins:     []string{"*"},
		RateLimitPerSecond: 5,
		RateLimitBurst:     20,
		MaxBodySize:        1 << 20, // 1 MB
		GenerationTimeout:  4 * time.Minute,
		EnableMetrics:      true,
	}
}

// Handlers groups everything the router dispatches to.
// Assets is nil when images are served from an external store.
type Handlers struct {
	Users   *UserHandler
	Stories *StoryHandler
	Health  *HealthHandler
	Assets  *AssetHandler
}

// NewRouter creates the chi router with the middleware stack applied.
// ctx bounds background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, config RouterConfig, h Handlers) http.Handler {
	b := NewBoundary(config.Errors, config.Logger)
	r := chi.NewRouter()

	// Order matters - first registered is outermost
	r.Use(RequestID(config.Logger))
	r.Use(chimw.RealIP)
	r.Use(Recover(config.Errors, config.Logger))
	r.Use(Logging(config.Logger))
	if config.EnableMetrics {
		r.Use(Metrics)
	}
	r.Use(SecureHeaders())
	r.Use(MaxBodySize(config.MaxBodySize))
	if config.EnableCORS {
		r.Use(CORS(config.AllowedOrigins))
	}
	if config.RateLimitPerSecond > 0 {
		r.Use(RateLimit(NewRateLimiter(ctx, config.RateLimitPerSecond, config.RateLimitBurst)))
	}
	r.Use(ContentType("application/json"))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, TransportError{Status: http.StatusNotFound, Code: "ROUTE_NOT_FOUND", Message: "No route matches " + r.URL.Path})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, TransportError{Status: http.StatusMethodNotAllowed, Code: "METHOD_NOT_ALLOWED", Message: "Method " + r.Method + " is not allowed"})
	})

	// Health checks (no auth required)
	r.Get("/health", h.Health.Live)
	r.Get("/ready", b.Endpoint(h.Health.Ready, domain.KindUnavailable))

	if config.EnableMetrics {
		r.Handle("/metrics", metricsHandler())
	}
	if h.Assets != nil {
		r.Get("/assets/*", b.Endpoint(h.Assets.Serve, domain.KindInvalid, domain.KindNotFound, domain.KindUnavailable))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(config.Verifier, b))

		r.Route("/users", func(r chi.Router) {
			registerUserRoutes(r, b, h.Users)
		})
		r.Route("/stories", func(r chi.Router) {
			registerStoryRoutes(r, b, h.Stories, config.GenerationTimeout)
		})
	})

	return r
}

// registerUserRoutes mounts profile and follow routes. Each route lists
// the error kinds it answers with; anything else is an internal error.
// Every route reads postgres, so every route answers Unavailable.
func registerUserRoutes(r chi.Router, b *Boundary, users *UserHandler) {
	const (
		invalid     = domain.KindInvalid
		notFound    = domain.KindNotFound
		conflict    = domain.KindConflict
		unavailable = domain.KindUnavailable
	)

	r.Post("/me", b.Endpoint(users.CreateProfile, invalid, conflict, unavailable))
	r.Get("/me", b.Endpoint(users.Me, notFound, unavailable))
	r.Put("/me", b.Endpoint(users.Update, invalid, notFound, conflict, unavailable))

	r.Get("/me/public_posts", b.Endpoint(users.PublicStories, notFound, unavailable))
	r.Get("/me/private_posts", b.Endpoint(users.PrivateStories, notFound, unavailable))
	r.Get("/me/saved_posts", b.Endpoint(users.SavedStories, notFound, unavailable))
	r.Get("/me/liked_posts", b.Endpoint(users.LikedStories, notFound, unavailable))

	r.Post("/follow/{username}", b.Endpoint(users.Follow, invalid, notFound, unavailable))
	r.Post("/unfollow/{username}", b.Endpoint(users.Unfollow, invalid, notFound, unavailable))
	r.Get("/is-following/{username}", b.Endpoint(users.IsFollowing, notFound, unavailable))
	r.Get("/followers", b.Endpoint(users.Followers, notFound, unavailable))
	r.Get("/following", b.Endpoint(users.Following, notFound, unavailable))

	r.Get("/username/{username}", b.Endpoint(users.PublicProfile, notFound, unavailable))
}

func registerStoryRoutes(r chi.Router, b *Boundary, stories *StoryHandler, generationTimeout time.Duration) {
	const (
		invalid     = domain.KindInvalid
		notFound    = domain.KindNotFound
		conflict    = domain.KindConflict
		denied      = domain.KindPermissionDenied
		unavailable = domain.KindUnavailable
	)

	r.Get("/", b.Endpoint(stories.ListRecent, invalid, unavailable))
	r.Post("/story", b.Endpoint(stories.Create, invalid, notFound, unavailable))
	r.With(Deadline(generationTimeout)).
		Post("/generate", b.Endpoint(stories.Generate, invalid, notFound, conflict, unavailable))

	r.Route("/story/{id}", func(r chi.Router) {
		r.Get("/", b.Endpoint(stories.GetByID, invalid, notFound, denied, unavailable))
		r.Post("/like", b.Endpoint(stories.Like, invalid, notFound, unavailable))
		r.Post("/unlike", b.Endpoint(stories.Unlike, invalid, notFound, unavailable))
		r.Post("/save", b.Endpoint(stories.Save, invalid, notFound, unavailable))
		r.Post("/unsave", b.Endpoint(stories.Unsave, invalid, notFound, unavailable))
		r.Post("/toggle-privacy", b.Endpoint(stories.TogglePrivacy, notFound, denied, unavailable))
		r.Get("/references", b.Endpoint(stories.References, invalid, notFound, denied, unavailable))
	})
}
