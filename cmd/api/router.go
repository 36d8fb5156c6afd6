package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/libroazul/libroazul/internal/domain/statement/handler"
	"github.com/libroazul/libroazul/pkg/middleware"
)

// newRouter assembles the HTTP surface: the import endpoint behind auth and
// rate limiting, plus unauthenticated health and metrics routes.
func newRouter(deps *Dependencies) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", handler.Health(deps.DB)).Methods(http.MethodGet)
	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r.NewRoute().Subrouter()
	api.Use(mux.MiddlewareFunc(middleware.RateLimit(
		deps.Config.Server.RateLimitPerSecond,
		deps.Config.Server.RateLimitBurst,
	)))
	api.Use(mux.MiddlewareFunc(deps.AuthMiddleware.Wrap))
	deps.ImportHandler.Register(api)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{deps.Config.Server.BaseURL},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})

	return c.Handler(r)
}
