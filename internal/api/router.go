package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/parley/internal/api/handler"
	"github.com/daap14/parley/internal/api/middleware"
	"github.com/daap14/parley/internal/ratelimit"
)

// Paths clients are sent to by the session gates.
const (
	loginPath = "/auth/login"
	homePath  = "/me"
)

// Metrics is the subset of metrics.Collector used by the router.
type Metrics interface {
	middleware.HTTPObserver
	middleware.RejectionRecorder
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger       handler.DBPinger
	Version        string
	ClientIPs      middleware.ClientIPResolver
	AuthService    handler.AuthService
	Sessions       handler.SessionManager
	SessionReader  middleware.SessionReader
	Users          middleware.UserFinder
	AuditLog       handler.AuditReader
	Limiter        middleware.Allower
	Metrics        Metrics
	MetricsHandler http.Handler
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if deps.ClientIPs != nil {
		r.Use(middleware.RealIP(deps.ClientIPs))
	}
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(middleware.Instrument(deps.Metrics))
	}

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	authLimit := middleware.RateLimit(deps.Limiter, ratelimit.ClassAuth, deps.Metrics)
	writeLimit := middleware.RateLimit(deps.Limiter, ratelimit.ClassWrite, deps.Metrics)
	anonymous := middleware.RequireAnonymous(deps.SessionReader, homePath)

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.Sessions, deps.Users)
	r.Route("/auth", func(r chi.Router) {
		r.With(authLimit, anonymous).Post("/register", authHandler.Register)
		r.Get("/status", authHandler.Status)
		r.With(anonymous).Get("/login", authHandler.LoginForm)
		r.With(authLimit, anonymous).Post("/login", authHandler.Login)
		r.With(authLimit).Post("/recover", authHandler.Recover)
		r.With(authLimit).Post("/reset", authHandler.Reset)
		r.With(writeLimit, middleware.RequireUser(deps.SessionReader, deps.Users, "")).Post("/logout", authHandler.Logout)
	})

	userHandler := handler.NewUserHandler()
	r.With(middleware.RequireUser(deps.SessionReader, deps.Users, loginPath)).Get("/me", userHandler.Me)
	auditHandler := handler.NewAuditHandler(deps.AuditLog)
	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.RequireUser(deps.SessionReader, deps.Users, ""), middleware.RequireRoot())
		r.Get("/ping", userHandler.AdminPing)
		r.Get("/users/{userID}/audit", auditHandler.ListByUser)
	})

	return r
}
