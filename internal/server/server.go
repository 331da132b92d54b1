// Package server wires handlers, middleware and routes, and runs the HTTP
// server with graceful shutdown.
//
// MIDDLEWARE ORDER:
//  1. RequestID   assigns X-Request-Id
//  2. RealIP      trusts X-Forwarded-For from the proxy
//  3. Logger      request log line + metrics, request-scoped logger
//  4. Recoverer   turns panics into 500s (inside Logger so they are logged)
//  5. RequestSize caps request bodies
//
// ROUTES:
//
//	GET    /healthz                    → store ping
//	GET    /metrics                    → Prometheus
//	GET    /api/version                → build info
//	GET    /api/quote/{id}             → one quote
//	GET    /api/quotes                 → list quotes
//	POST   /api/quote                  → create quote
//	DELETE /api/quote/{id}             → delete own quote
//	PUT    /api/quote/{id}/hide        → hide
//	POST   /api/quote/{id}/report      → report
//	PUT    /api/quote/{id}/resolve     → resolve reports (privileged)
//	POST   /api/quote/{id}/vote        → vote
//	DELETE /api/quote/{id}/vote        → unvote
//	POST   /api/quote/{id}/favorite    → favorite
//	DELETE /api/quote/{id}/favorite    → unfavorite
//	GET    /api/users                  → quotable members
//	GET    /api/reports                → open reports (privileged)
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/quotefault/internal/auth"
	"github.com/sakif/quotefault/internal/config"
	"github.com/sakif/quotefault/internal/handler"
	"github.com/sakif/quotefault/internal/metrics"
	"github.com/sakif/quotefault/internal/middleware"
)

// Dependencies are the collaborators the server routes to. main builds them.
type Dependencies struct {
	Quotes     handler.QuoteService
	Moderation handler.ModerationService
	Members    handler.MemberService
	Store      handler.Pinger
	Auth       *auth.Authenticator
	Metrics    *metrics.Metrics
	Build      handler.BuildInfo

	// OnShutdown runs after the listener has drained, in order. Used to
	// flush pending notifications and close the store.
	OnShutdown []func(ctx context.Context) error
}

// Server represents the HTTP server and its routes.
type Server struct {
	router *chi.Mux
	config config.ServerConfig
	deps   Dependencies
	logger *slog.Logger
}

// New builds the router. It does not start listening.
func New(cfg config.ServerConfig, deps Dependencies, logger *slog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger, s.deps.Metrics))
	s.router.Use(chimiddleware.Recoverer)
	if s.config.MaxRequestSize > 0 {
		s.router.Use(chimiddleware.RequestSize(s.config.MaxRequestSize))
	}

	health := handler.NewHealthHandler(s.deps.Store, s.deps.Build, s.logger)
	quotes := handler.NewQuoteHandler(s.deps.Quotes, s.deps.Auth, s.logger)
	moderation := handler.NewModerationHandler(s.deps.Moderation, s.deps.Auth, s.logger)
	members := handler.NewMemberHandler(s.deps.Members)

	s.router.Get("/healthz", health.HandleHealth)
	if s.deps.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(s.deps.Auth.RequireAuth)

		r.Get("/version", health.HandleVersion)
		r.Get("/users", members.HandleList)

		r.Get("/quotes", quotes.HandleList)
		r.Post("/quote", quotes.HandleCreate)

		r.Route("/quote/{id}", func(r chi.Router) {
			r.Get("/", quotes.HandleGet)
			r.Delete("/", quotes.HandleDelete)
			r.Post("/vote", quotes.HandleVote)
			r.Delete("/vote", quotes.HandleUnvote)
			r.Post("/favorite", quotes.HandleFavorite)
			r.Delete("/favorite", quotes.HandleUnfavorite)
			r.Put("/hide", moderation.HandleHide)
			r.Post("/report", moderation.HandleReport)
			r.With(s.deps.Auth.RequirePrivileged).Put("/resolve", moderation.HandleResolve)
		})

		r.With(s.deps.Auth.RequirePrivileged).Get("/reports", moderation.HandleListReports)
	})
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the shutdown timeout and runs the OnShutdown hooks.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", slog.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}
	for _, hook := range s.deps.OnShutdown {
		if err := hook(shutdownCtx); err != nil {
			s.logger.Error("shutdown hook failed", slog.String("error", err.Error()))
		}
	}

	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout > 0 {
		return s.config.ShutdownTimeout
	}
	return 30 * time.Second
}
