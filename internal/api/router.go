package api

import (
	"fleet-dispatch-service/internal/api/handlers"
	"fleet-dispatch-service/internal/platform/logger"
	"fleet-dispatch-service/internal/services"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterDeps struct {
	Engine   *services.Engine
	Location *time.Location
	// Gatherer backs GET /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   logger.Logger
	Now      func() time.Time
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Logger == nil {
		deps.Logger = logger.NopLogger{}
	}

	mux := http.NewServeMux()

	suggestions := &handlers.SuggestionHandler{Engine: deps.Engine, Location: deps.Location, Now: deps.Now}
	etas := &handlers.ETAHandler{Engine: deps.Engine, Location: deps.Location, Now: deps.Now}
	health := &handlers.HealthHandler{Engine: deps.Engine}

	mux.HandleFunc("/health", health.Health)
	mux.HandleFunc("/suggestions", suggestions.Suggest)
	mux.HandleFunc("/etas", etas.ETAs)
	if deps.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	return loggingMiddleware(deps.Logger, mux)
}
