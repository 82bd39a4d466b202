// Package api wires the HTTP surface: routing, handlers and the
// middleware stack.
package api

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/testboss/testboss/pkg/httputil"
	"github.com/testboss/testboss/pkg/middleware"
	"github.com/testboss/testboss/pkg/observability"
)

// RouteRegistrar registers routes on a router
type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

// Deps carries everything the server needs
type Deps struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	AuthMiddleware *middleware.AuthMiddleware
	LoginLimiter   *middleware.LoginRateLimiter
	CORSOrigins    []string

	DB *sql.DB

	Sessions    *SessionHandlers
	Accounts    *AccountHandlers
	Users       *UserHandlers
	Projects    *ProjectHandlers
	Testlists   *TestlistHandlers
	Testchecks  *TestcheckHandlers
	Testreports *TestreportHandlers
	Testresults *TestresultHandlers
}

// Server owns the router and the ambient middleware stack
type Server struct {
	deps    Deps
	handler http.Handler
}

// NewServer creates the server and sets up all routes
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	root := mux.NewRouter()

	root.HandleFunc("/healthz", s.healthz).Methods("GET")
	if s.deps.Metrics != nil {
		root.Handle("/metrics", s.deps.Metrics.Handler()).Methods("GET")
	}

	// Login is public and rate-limited per client IP
	login := http.Handler(http.HandlerFunc(s.deps.Sessions.Login))
	if s.deps.LoginLimiter != nil {
		login = s.deps.LoginLimiter.Handler(login)
	}
	root.Handle("/sessions/login", login).Methods("POST")

	// Everything else requires an authenticated caller
	protected := root.PathPrefix("/").Subrouter()
	if s.deps.AuthMiddleware != nil {
		protected.Use(s.deps.AuthMiddleware.Handler)
	}

	registrars := []RouteRegistrar{
		s.deps.Sessions,
		s.deps.Accounts,
		s.deps.Users,
		s.deps.Projects,
		s.deps.Testlists,
		s.deps.Testchecks,
		s.deps.Testreports,
		s.deps.Testresults,
	}
	for _, registrar := range registrars {
		registrar.RegisterRoutes(protected)
	}

	stack := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.CORSMiddleware(s.deps.CORSOrigins),
		httputil.RecoveryMiddleware(s.deps.Logger),
		httputil.LoggingMiddleware(s.deps.Logger),
	}
	if s.deps.Metrics != nil {
		stack = append(stack, httputil.MetricsMiddleware(s.deps.Metrics))
	}

	s.handler = httputil.Chain(stack...)(root)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(r.Context()); err != nil {
			httputil.WriteAPIError(w, s.deps.Logger, httputil.Internalf("database unreachable: %w", err))
			return
		}
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
