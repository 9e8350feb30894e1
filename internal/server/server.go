package server

import (
	"context"
	"net/http"
	"time"

	"github.com/hongminglow/budget-api/internal/auth"
	"github.com/hongminglow/budget-api/internal/cache"
	"github.com/hongminglow/budget-api/internal/config"
	"github.com/hongminglow/budget-api/internal/http/handlers"
	"github.com/hongminglow/budget-api/internal/middleware"
	"github.com/hongminglow/budget-api/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
// /api/register and /api/login are public; every other /api route sits
// behind the bearer-token middleware.
func New(cfg config.Config, store storage.Store, cacheStore cache.Store) *Server {
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(time.Now()).Register(mux)
	handlers.NewAuthHandler(store, tokens).Register(mux)

	protected := http.NewServeMux()
	handlers.NewProfileHandler(store, cacheStore).Register(protected)
	handlers.NewBudgetHandler(store, cacheStore).Register(protected)
	handlers.NewExpenseHandler(store, cacheStore).Register(protected)
	mux.Handle("/api/", middleware.Auth(tokens, protected))

	handler := middleware.CORS(cfg.CORSOrigins, middleware.Logging(mux))

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
