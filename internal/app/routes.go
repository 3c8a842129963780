package app

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"overlay-router/internal/handlers"
	"overlay-router/internal/middleware"
)

// SetupRoutes configures the admin routes
func (app *App) SetupRoutes(router *mux.Router) {
	router.Use(middleware.Logging(app.base))

	h := handlers.New(app.Manager, app.healthChecks(), app.Breakers, app.base)
	h.Register(router)

	router.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})).Methods("GET")
}

func (app *App) healthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"store": func(ctx context.Context) error { return app.Store.Health(ctx) },
	}
	if app.RedisClient != nil {
		checks["redis"] = app.RedisClient.Health
	}
	return checks
}
