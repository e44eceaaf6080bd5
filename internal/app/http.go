package app

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/debugserver"
	"courier-dispatch/internal/http/handlers"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/http/router"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
	redisrepo "courier-dispatch/internal/repository/redis"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/notify"
	"courier-dispatch/internal/service/scheduler"
	"courier-dispatch/internal/service/tracking"
	"courier-dispatch/internal/transport/ws"
)

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		func() ratelimit.Clock { return ratelimit.ClockFunc(time.Now) },
		newRateLimiter,
		newRateLimitMiddleware,
		handlers.New,
		func(logger logx.Logger, svc *dispatch.Service, archive *repository.ArchiveRepo) *handlers.DispatchHandler {
			return handlers.NewDispatchHandler(logger, svc, archive)
		},
		newTrackingHandler,
		func(logger logx.Logger, pool *courier.Service) *handlers.CourierHandler {
			return handlers.NewCourierHandler(logger, pool)
		},
		newRouter,
		serverProvider,
		newDebugServer,
	)
}

// debugServer is the optional pprof and state listener.
type debugServer struct {
	srv *http.Server
}

type debugIn struct {
	dig.In

	Config    *config.Config
	Store     *repository.AssignmentStore
	Scheduler *scheduler.Scheduler
	Tracker   *tracking.Broadcaster
	Relay     *notify.Relay
}

// newDebugServer returns nil when pprof is disabled.
func newDebugServer(in debugIn) *debugServer {
	p := in.Config.Pprof
	if !p.Enabled {
		return nil
	}
	h := debugserver.Handler(debugserver.Config{User: p.User, Pass: p.Pass}, map[string]debugserver.Snapshot{
		"assignments": func() any { return map[string]int{"records": in.Store.Len()} },
		"timers":      func() any { return map[string]int{"pending": in.Scheduler.Pending()} },
		"tracking":    func() any { return in.Tracker.Stats() },
		"notify":      func() any { return map[string]int{"queued": in.Relay.Len()} },
	})
	return &debugServer{srv: &http.Server{
		Addr:              p.Addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

// newRateLimitMiddleware charges location publishes to the courier that sent them.
func newRateLimitMiddleware(logger logx.Logger, m *metrics.Metrics, limiter ratelimit.Limiter) *ratelimit.Middleware {
	return ratelimit.New(logger, m.RateLimitExceeded, limiter, ratelimit.CourierKey)
}

type trackingHandlerIn struct {
	dig.In

	Logger  logx.Logger
	Tracker *tracking.Broadcaster
	Mirror  *redisrepo.LocationMirror
	Archive *repository.ArchiveRepo
}

func newTrackingHandler(in trackingHandlerIn) *handlers.TrackingHandler {
	if in.Mirror == nil {
		return handlers.NewTrackingHandler(in.Logger, in.Tracker, nil, in.Archive, ws.DefaultWriteTimeout)
	}
	return handlers.NewTrackingHandler(in.Logger, in.Tracker, in.Mirror, in.Archive, ws.DefaultWriteTimeout)
}

type routerIn struct {
	dig.In

	Logger    logx.Logger
	Metrics   *metrics.Metrics
	Base      *handlers.Handlers
	Dispatch  *handlers.DispatchHandler
	Tracking  *handlers.TrackingHandler
	Couriers  *handlers.CourierHandler
	RateLimit *ratelimit.Middleware
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:    in.Logger,
		Metrics:   in.Metrics,
		Base:      in.Base,
		Dispatch:  in.Dispatch,
		Tracking:  in.Tracking,
		Couriers:  in.Couriers,
		RateLimit: in.RateLimit,
	})
}
