package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"courier-dispatch/internal/http/handlers"
	obs "courier-dispatch/internal/http/middleware"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
)

const requestTimeout = 5 * time.Second

// Deps are the handlers and cross-cutting pieces the router mounts.
type Deps struct {
	Logger    logx.Logger
	Metrics   *metrics.Metrics
	Base      *handlers.Handlers
	Dispatch  *handlers.DispatchHandler
	Tracking  *handlers.TrackingHandler
	Couriers  *handlers.CourierHandler
	RateLimit *ratelimit.Middleware // location publishes only, may be nil
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Metrics != nil {
		r.Use(obs.Observability(d.Logger, d.Metrics.HTTPRequests, d.Metrics.HTTPRequestDuration))
	} else {
		r.Use(obs.Observability(d.Logger, nil, nil))
	}
	r.Use(middleware.Recoverer)

	r.NotFound(http.HandlerFunc(d.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(d.Base.MethodNotAllowed))

	// long-lived streams stay outside the request timeout
	r.Get("/tracking/{orderID}/ws", d.Tracking.Stream)

	t := r.With(middleware.Timeout(requestTimeout))

	t.Get("/ping", d.Base.Ping)
	t.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	t.Handle("/metrics", metricsHandler(d.Metrics))

	t.Post("/dispatch", d.Dispatch.Start)
	t.Get("/dispatch/{orderID}", d.Dispatch.Get)
	t.Post("/dispatch/{orderID}/accept", d.Dispatch.Accept)
	t.Post("/dispatch/{orderID}/reject", d.Dispatch.Reject)
	t.Post("/dispatch/{orderID}/cancel", d.Dispatch.Cancel)

	t.With(rateLimited(d.RateLimit)...).Post("/tracking/{orderID}/location", d.Tracking.PublishLocation)
	t.Get("/tracking/{orderID}/location", d.Tracking.Locations)
	t.Post("/tracking/{orderID}/status", d.Tracking.PublishStatus)
	t.Get("/tracking/{orderID}/history", d.Tracking.History)

	t.Post("/couriers", d.Couriers.Create)
	t.Get("/couriers/{id}", d.Couriers.GetByID)
	t.Put("/couriers/{id}/status", d.Couriers.UpdateStatus)

	return r
}

func rateLimited(m *ratelimit.Middleware) []func(http.Handler) http.Handler {
	if m == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{m.Handler()}
}

func metricsHandler(m *metrics.Metrics) http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
