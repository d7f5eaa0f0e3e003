// Package server is the development backend standing in for the hosted
// realtime database and auth service.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meltforce/fitcourse/internal/auth"
	"github.com/meltforce/fitcourse/internal/catalog"
	"github.com/meltforce/fitcourse/internal/remote"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	store  remote.Store
	auth   *auth.Service
	seeder *catalog.Seeder
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(store remote.Store, authSvc *auth.Service, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		store:  store,
		auth:   authSvc,
		seeder: catalog.NewSeeder(store, log, false),
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
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
	s.router.Use(CORS)

	s.router.Get("/api/v1/health", s.handleHealth)

	s.router.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/signup", s.handleSignUp)
		r.Post("/signin", s.handleSignIn)
		r.Post("/reset", s.handlePasswordReset)

		r.Group(func(r chi.Router) {
			r.Use(BearerIdentity(s.auth))
			r.Use(RequireIdentity)
			r.Post("/password", s.handleChangePassword)
			r.Get("/me", s.handleMe)
		})
	})

	// Node access: catalog reads are public, per-user nodes are owner-only.
	s.router.Route("/api/v1/db", func(r chi.Router) {
		r.Use(BearerIdentity(s.auth))
		r.Get("/*", s.handleRead)
		r.Put("/*", s.handleWrite)
		r.Delete("/*", s.handleDelete)
	})

	// Catalog upload (API key required)
	s.router.Route("/api/v1/seed", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/", s.handleSeed)
	})
}
