package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"courier-dispatch/internal/jobs"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/notify"
	"courier-dispatch/internal/service/scheduler"
	"courier-dispatch/internal/service/tracking"
	"courier-dispatch/internal/transport/kafka"
	"courier-dispatch/internal/transport/rabbitmq"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the service using a built container.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun starts the service and blocks until shutdown
func (r *Runner) MustRun(container *dig.Container) {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })

	err := r.runFn(container)
	switch {
	case err == nil:
		return
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		log.Fatalf("run error: %v", err)
	}
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

type runIn struct {
	dig.In

	Ctx       context.Context
	Logger    logx.Logger
	Metrics   *metrics.Metrics
	Server    *http.Server
	Pool      *pgxpool.Pool
	Store     *repository.AssignmentStore
	Scheduler *scheduler.Scheduler
	Dispatch  *dispatch.Service
	Tracker   *tracking.Broadcaster
	Relay     *notify.Relay
	Jobs      *jobs.Manager
	Consumer  *kafka.Consumer
	Rabbit    *rabbitmq.Publisher
	Redis     *goredis.Client
	Debug     *debugServer
}

// appRun starts every worker and the HTTP server, then waits for ctx to end.
// The relay stops last so that events queued during shutdown still go out.
func appRun(in runIn) error {
	registerGauges(in)

	relayCtx, stopRelay := context.WithCancel(context.Background())
	relayDone := make(chan error, 1)
	go func() { relayDone <- in.Relay.Run(relayCtx) }()

	g, ctx := errgroup.WithContext(in.Ctx)
	g.Go(func() error { return in.Scheduler.Run(ctx, in.Dispatch.HandleTimeout) })
	g.Go(func() error { return in.Jobs.Run(ctx) })
	if in.Consumer != nil {
		g.Go(func() error { return in.Consumer.Run(ctx) })
	}
	g.Go(func() error { return serve(ctx, in.Server, in.Logger) })
	if in.Debug != nil {
		g.Go(func() error { return serve(ctx, in.Debug.srv, in.Logger.With(logx.Component("debug"))) })
	}

	in.Logger.Info("courier-dispatch started",
		logx.String("addr", in.Server.Addr),
		logx.Bool("kafka", in.Consumer != nil),
		logx.Bool("rabbitmq", in.Rabbit != nil),
		logx.Bool("redis", in.Redis != nil),
	)

	err := g.Wait()
	in.Logger.Info("shutting down courier-dispatch...")

	stopRelay()
	if rerr := <-relayDone; rerr != nil && !errors.Is(rerr, context.Canceled) {
		in.Logger.Error("relay stopped with error", logx.Err(rerr))
	}
	closeResources(in)

	if err != nil {
		return err
	}
	return in.Ctx.Err()
}

// serve runs srv until ctx is done and then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger logx.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", logx.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	gracefulShutdown(srv, logger, shutdownTimeout)
	return <-errCh
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.Err(err))
	}
}

func registerGauges(in runIn) {
	if in.Metrics == nil {
		return
	}
	in.Metrics.Gauge("dispatch_records", "Assignment records held in memory.", func() float64 {
		return float64(in.Store.Len())
	})
	in.Metrics.Gauge("dispatch_timers_pending", "Offer timers waiting to fire.", func() float64 {
		return float64(in.Scheduler.Pending())
	})
	in.Metrics.Gauge("tracking_subscriptions", "Open tracking subscriptions.", func() float64 {
		return float64(in.Tracker.Stats().Subscriptions)
	})
	in.Metrics.Gauge("notify_queue_length", "Outward events waiting to be published.", func() float64 {
		return float64(in.Relay.Len())
	})
}

func closeResources(in runIn) {
	if in.Consumer != nil {
		if err := in.Consumer.Close(); err != nil {
			in.Logger.Warn("kafka close error", logx.Err(err))
		}
	}
	if in.Rabbit != nil {
		if err := in.Rabbit.Close(); err != nil {
			in.Logger.Warn("rabbitmq close error", logx.Err(err))
		}
	}
	if in.Redis != nil {
		if err := in.Redis.Close(); err != nil {
			in.Logger.Warn("redis close error", logx.Err(err))
		}
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
}
