package app

import (
	"time"

	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/http/middleware/ratelimit"
	"courier-dispatch/internal/jobs"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/service/courier"
	"courier-dispatch/internal/service/dispatch"
	"courier-dispatch/internal/service/notify"
	"courier-dispatch/internal/service/orders"
	"courier-dispatch/internal/service/scheduler"
	"courier-dispatch/internal/service/tracking"
	"courier-dispatch/internal/transport/kafka"
)

const (
	retentionSchedule = "@every 1m"
	deadlineSchedule  = "@every 5s"
)

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		repository.NewAssignmentStore,
		func(logger logx.Logger, m *metrics.Metrics) *scheduler.Scheduler {
			return scheduler.New(logger, m.TimersFired)
		},
		func(cfg *config.Config, logger logx.Logger, m *metrics.Metrics, relay *notify.Relay) *tracking.Broadcaster {
			return tracking.New(logger, relay, cfg.Tracking.BufferSize, tracking.Metrics{
				LocationsPublished: m.LocationsPublished,
				StatusesPublished:  m.StatusesPublished,
				SinksDropped:       m.SubscribersDropped,
			})
		},
		func(cfg *config.Config, repo *repository.CourierRepo) *courier.Service {
			return courier.NewService(repo, cfg.Dispatch.OperationTimeout)
		},
		newDispatchService,
		func(svc *dispatch.Service, b *tracking.Broadcaster, pool *courier.Service, logger logx.Logger) *orders.Processor {
			return orders.NewProcessor(svc, b, pool, logger, orders.DefaultCandidateLimit)
		},
		newOrdersConsumer,
		newJobs,
	)
}

type dispatchIn struct {
	dig.In

	Config  *config.Config
	Logger  logx.Logger
	Metrics *metrics.Metrics
	Store   *repository.AssignmentStore
	Timers  *scheduler.Scheduler
	Tracker *tracking.Broadcaster
	Relay   *notify.Relay
	Pool    *courier.Service
}

func newDispatchService(in dispatchIn) *dispatch.Service {
	return dispatch.NewService(
		dispatch.Deps{
			Store:    in.Store,
			Timers:   in.Timers,
			Statuses: in.Tracker,
			Notifier: in.Relay,
			Pool:     in.Pool,
		},
		dispatch.Config{
			OfferWindow:      in.Config.Dispatch.OfferWindow,
			OperationTimeout: in.Config.Dispatch.OperationTimeout,
		},
		in.Logger,
		dispatch.Metrics{
			Offers:   in.Metrics.DispatchOffers,
			Accepted: in.Metrics.DispatchAccepted,
			Failed:   in.Metrics.DispatchFailed,
			Stale:    in.Metrics.StaleOffers,
			Timeouts: in.Metrics.OfferTimeouts,
		},
	)
}

// newOrdersConsumer returns nil when Kafka is not configured.
func newOrdersConsumer(cfg *config.Config, logger logx.Logger, p *orders.Processor) (*kafka.Consumer, error) {
	k := cfg.Kafka
	if !k.Enabled() {
		logger.Info("kafka disabled, order events off")
		return nil, nil
	}
	return kafka.NewConsumer(logger, k.Brokers, k.GroupID, k.Topic, p.Handle)
}

type jobsIn struct {
	dig.In

	Config  *config.Config
	Logger  logx.Logger
	Store   *repository.AssignmentStore
	Tracker *tracking.Broadcaster
	Limiter ratelimit.Limiter
	Service *dispatch.Service
}

func newJobs(in jobsIn) (*jobs.Manager, error) {
	m := jobs.NewManager(in.Logger)

	retention := jobs.Retention{
		Records:   in.Store,
		Channels:  in.Tracker,
		Retention: in.Config.Dispatch.Retention,
		Logger:    in.Logger,
		Now:       func() time.Time { return time.Now().UTC() },
	}
	if s, ok := in.Limiter.(jobs.Sweeper); ok {
		retention.Limiter = s
	}
	if err := m.Add("retention", retentionSchedule, retention.Run); err != nil {
		return nil, err
	}

	if in.Config.Dispatch.MaxDuration > 0 {
		deadline := jobs.Deadline{
			Dispatches:  in.Service,
			MaxDuration: in.Config.Dispatch.MaxDuration,
			Logger:      in.Logger,
		}
		if err := m.Add("deadline", deadlineSchedule, deadline.Run); err != nil {
			return nil, err
		}
	}
	return m, nil
}
