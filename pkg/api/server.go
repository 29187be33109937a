package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/critiqdev/critiq/pkg/auth"
	"github.com/critiqdev/critiq/pkg/httputil"
	"github.com/critiqdev/critiq/pkg/middleware"
	"github.com/critiqdev/critiq/pkg/observability"
	"github.com/critiqdev/critiq/pkg/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Server wires handlers, middleware and routes together.
type Server struct {
	store       *store.Store
	authService *auth.Service
	authMW      *middleware.AuthMiddleware
	rateLimitMW *middleware.RateLimitMiddleware
	logger      *observability.Logger
	metrics     *observability.Metrics
	maxBody     int64
	tracing     bool
	now         func() time.Time
}

// ServerOption configures optional server behavior.
type ServerOption func(*Server)

// WithRateLimiter mounts the rate limiter on the auth endpoints.
func WithRateLimiter(m *middleware.RateLimitMiddleware) ServerOption {
	return func(s *Server) { s.rateLimitMW = m }
}

// WithTracing wraps the router in OpenTelemetry HTTP instrumentation.
func WithTracing() ServerOption {
	return func(s *Server) { s.tracing = true }
}

// WithMaxBodyBytes caps request body size.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) { s.maxBody = n }
}

// WithServerClock overrides the time source. Used by tests.
func WithServerClock(now func() time.Time) ServerOption {
	return func(s *Server) { s.now = now }
}

// NewServer creates the API server.
func NewServer(st *store.Store, authService *auth.Service, authMW *middleware.AuthMiddleware, logger *observability.Logger, metrics *observability.Metrics, opts ...ServerOption) *Server {
	s := &Server{
		store:       st,
		authService: authService,
		authMW:      authMW,
		logger:      logger,
		metrics:     metrics,
		maxBody:     1 << 20,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the full handler with middleware mounted.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	// mux middleware runs after route matching, which the metrics
	// middleware needs to resolve the path template
	if s.metrics != nil {
		router.Use(s.metrics.Middleware(routeTemplate))
	}
	router.Use(s.authMW.Handler)
	s.setupRoutes(router)

	handler := httputil.Chain(
		httputil.RecoveryMiddleware(s.logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.MaxBytesMiddleware(s.maxBody),
	)(router)
	if s.tracing {
		handler = otelhttp.NewHandler(handler, "critiq-api")
	}
	return handler
}

// routeTemplate resolves the mux route pattern for metric labels, so
// /v1/titles/42 and /v1/titles/7 share one series.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func (s *Server) setupRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/v1").Subrouter()

	// auth endpoints, optionally rate limited
	signup := http.HandlerFunc(s.signup)
	token := http.HandlerFunc(s.exchangeToken)
	if s.rateLimitMW != nil {
		v1.Handle("/auth/signup", s.rateLimitMW.Handler(signup)).Methods("POST")
		v1.Handle("/auth/token", s.rateLimitMW.Handler(token)).Methods("POST")
	} else {
		v1.Handle("/auth/signup", signup).Methods("POST")
		v1.Handle("/auth/token", token).Methods("POST")
	}

	// user administration
	v1.HandleFunc("/users", s.listUsers).Methods("GET")
	v1.HandleFunc("/users", s.createUser).Methods("POST")
	v1.HandleFunc("/users/me", s.getMe).Methods("GET")
	v1.HandleFunc("/users/me", s.updateMe).Methods("PATCH")
	v1.HandleFunc("/users/{username}", s.getUser).Methods("GET")
	v1.HandleFunc("/users/{username}", s.updateUser).Methods("PATCH")
	v1.HandleFunc("/users/{username}", s.deleteUser).Methods("DELETE")

	// catalog
	v1.HandleFunc("/categories", s.listCategories).Methods("GET")
	v1.HandleFunc("/categories", s.createCategory).Methods("POST")
	v1.HandleFunc("/categories/{slug}", s.deleteCategory).Methods("DELETE")
	v1.HandleFunc("/genres", s.listGenres).Methods("GET")
	v1.HandleFunc("/genres", s.createGenre).Methods("POST")
	v1.HandleFunc("/genres/{slug}", s.deleteGenre).Methods("DELETE")
	v1.HandleFunc("/titles", s.listTitles).Methods("GET")
	v1.HandleFunc("/titles", s.createTitle).Methods("POST")
	v1.HandleFunc("/titles/{title_id}", s.getTitle).Methods("GET")
	v1.HandleFunc("/titles/{title_id}", s.updateTitle).Methods("PATCH")
	v1.HandleFunc("/titles/{title_id}", s.deleteTitle).Methods("DELETE")

	// reviews and comments
	v1.HandleFunc("/titles/{title_id}/reviews", s.listReviews).Methods("GET")
	v1.HandleFunc("/titles/{title_id}/reviews", s.createReview).Methods("POST")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}", s.getReview).Methods("GET")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}", s.updateReview).Methods("PATCH")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}", s.deleteReview).Methods("DELETE")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}/comments", s.listComments).Methods("GET")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}/comments", s.createComment).Methods("POST")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}/comments/{comment_id}", s.getComment).Methods("GET")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}/comments/{comment_id}", s.updateComment).Methods("PATCH")
	v1.HandleFunc("/titles/{title_id}/reviews/{review_id}/comments/{comment_id}", s.deleteComment).Methods("DELETE")
}

// paging extracts limit/offset query parameters with bounds.
func paging(r *http.Request) (limit, offset int) {
	limit = httputil.QueryInt(r, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset = httputil.QueryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
