// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - Which routes need a signed-in user and which merely notice one
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New():
//	  sqlite.DB (implements every repository interface)
//	    → PoemListingService, PoemService, UserService
//	      → PoemHandler, UserHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/poit/internal/auth"
	"github.com/sakif/poit/internal/config"
	"github.com/sakif/poit/internal/handler"
	"github.com/sakif/poit/internal/middleware"
	sqliteRepo "github.com/sakif/poit/internal/repository/sqlite"
	"github.com/sakif/poit/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the HTTP
// server has drained; code that never calls Start (tests) calls Close.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	tokens *auth.TokenService
}

// New opens the database and wires every layer on top of it.
func New(cfg config.Config, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return nil, err
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		tokens: tokens,
	}
	s.setupRoutes()

	return s, nil
}

// Handler exposes the router so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                                 → liveness + DB ping
//	GET    /api/poems                               → all poems        (optional auth)
//	GET    /api/poems/mine                          → own poems        (auth)
//	GET    /api/poems/feed                          → followed + own   (auth)
//	GET    /api/users/{userId}/poems                → one user's poems (optional auth)
//	GET    /api/users/{userId}                      → public profile   (optional auth)
//	GET    /api/me                                  → own account      (auth)
//	POST   /api/poems                               → create           (auth)
//	GET    /api/poems/{id}                          → one poem         (optional auth)
//	PATCH  /api/poems/{id}                          → rename           (auth)
//	DELETE /api/poems/{id}                          → delete           (auth)
//	POST   /api/poems/{id}/stanzas                  → add stanza       (auth)
//	PATCH  /api/poems/{id}/stanzas/{stanzaId}       → edit stanza      (auth)
//	DELETE /api/poems/{id}/stanzas/{stanzaId}       → remove stanza    (auth)
//	PUT    /api/poems/{id}/stanzas/order            → reorder stanzas  (auth)
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID: assigns an id each log line can carry
//  2. RealIP: rewrites RemoteAddr, which the rate limiter keys on
//  3. Logger: outermost of ours, so it sees the final status
//  4. Recoverer: turns panics into 500s
//  5. CORS: answers preflights before auth can reject them
//  6. RateLimiter
//
// WHY "/poems/mine" BEFORE "/poems/{id}"?
// It does not matter with chi: static segments always win over params,
// whatever order they are registered in.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSOrigin))
	s.router.Use(middleware.NewRateLimiter(s.config.RateLimit, s.config.RateBurst).Middleware)

	s.router.Get("/healthz", s.handleHealth)

	// s.db satisfies PoemRepository, UserRepository and FollowRepository.
	listingService := service.NewPoemListingService(s.db, s.db, s.db, s.logger)
	poemService := service.NewPoemService(s.db, s.logger)
	userService := service.NewUserService(s.db, s.db, auth.NewPasswordService(), s.logger)

	poemHandler := handler.NewPoemHandler(listingService, poemService, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Anonymous callers are fine here; a valid token only adds isOwner.
		r.Group(func(r chi.Router) {
			r.Use(auth.OptionalAuth(s.tokens))

			r.Get("/poems", poemHandler.HandleListAll)
			r.Get("/poems/{id}", poemHandler.HandleGet)
			r.Get("/users/{userId}", userHandler.HandleGet)
			r.Get("/users/{userId}/poems", poemHandler.HandleListUser)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(s.tokens))

			r.Get("/me", userHandler.HandleMe)
			r.Get("/poems/mine", poemHandler.HandleListMine)
			r.Get("/poems/feed", poemHandler.HandleListFeed)

			r.Post("/poems", poemHandler.HandleCreate)
			r.Patch("/poems/{id}", poemHandler.HandleRename)
			r.Delete("/poems/{id}", poemHandler.HandleDelete)

			r.Post("/poems/{id}/stanzas", poemHandler.HandleAddStanza)
			r.Put("/poems/{id}/stanzas/order", poemHandler.HandleReorderStanzas)
			r.Patch("/poems/{id}/stanzas/{stanzaId}", poemHandler.HandleUpdateStanza)
			r.Delete("/poems/{id}/stanzas/{stanzaId}", poemHandler.HandleRemoveStanza)
		})
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Error("health check failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Write([]byte(`{"status":"ok"}`))
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (ShutdownTimeout)
//  3. Close the database connection (flushes WAL, releases file lock)
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
