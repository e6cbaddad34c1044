package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/repquest/internal/auth"
	"github.com/claude/repquest/internal/models"
	"github.com/claude/repquest/internal/storage"
)

// Store is the persistence the HTTP handlers need.
type Store interface {
	ListLevels(ctx context.Context, f storage.LevelFilter) ([]models.Level, int, error)
	GetLevel(ctx context.Context, levelNumber int) (models.Level, error)
	UpsertUser(ctx context.Context, id uuid.UUID, name string) error
	GetOrCreateUserProgress(ctx context.Context, userID uuid.UUID) (models.UserProgress, error)
	CompleteLevel(ctx context.Context, userID uuid.UUID, levelNumber int) (models.UserProgress, bool, error)
	ListCompletions(ctx context.Context, userID uuid.UUID) ([]storage.Completion, error)
	Ping(ctx context.Context) error
}

var _ Store = (*storage.DB)(nil)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// RequestMetrics observes served requests.
type RequestMetrics interface {
	RequestServed(method, route string, status int, d time.Duration)
	LevelCompleted(rewarded bool)
}

// Options tunes the server. Zero values pick defaults.
type Options struct {
	LevelCacheBytes int
	LevelCacheTTL   time.Duration
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store   Store
	tokens  TokenValidator
	levels  *levelCache
	metrics RequestMetrics
	log     *slog.Logger
	router  chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, tokens TokenValidator, metrics RequestMetrics, opts Options, log *slog.Logger) *Server {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	s := &Server{
		store:   store,
		tokens:  tokens,
		levels:  newLevelCache(opts.LevelCacheBytes, opts.LevelCacheTTL),
		metrics: metrics,
		log:     log,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(RouteMetrics(s.metrics))
	s.router.Use(CORS)

	s.router.Get("/healthz", s.handleHealth)

	// Level listing is public
	s.router.Get("/api/levels", s.handleListLevels)

	s.router.Group(func(r chi.Router) {
		r.Use(BearerAuth(s.tokens, s.store, s.log))
		r.Get("/api/levels/{levelNumber}", s.handleGetLevel)
		r.Post("/api/levels/{levelNumber}/complete", s.handleCompleteLevel)
		r.Get("/api/user-progress", s.handleUserProgress)
		r.Get("/api/user-progress/completions", s.handleCompletions)
	})
}

// SetLiveHub mounts the live relay. The hub authenticates its own upgrades.
func (s *Server) SetLiveHub(h http.Handler) {
	s.router.Handle("/ws", h)
}

// SetMetricsHandler mounts the Prometheus exposition endpoint.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.router.Handle("/metrics", h)
}

// SetMCP mounts the MCP streamable HTTP transport behind bearer auth.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(BearerAuth(s.tokens, s.store, s.log)).Handle("/mcp", h)
}

type nopMetrics struct{}

func (nopMetrics) RequestServed(string, string, int, time.Duration) {}
func (nopMetrics) LevelCompleted(bool)                              {}
