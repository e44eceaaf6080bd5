package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/repository"
	redisrepo "courier-dispatch/internal/repository/redis"
	"courier-dispatch/internal/service/notify"
	"courier-dispatch/internal/transport/rabbitmq"
)

func registerOutbound(container *dig.Container) error {
	return provideAll(container,
		newRabbitPublisher,
		newRedisClient,
		newLocationMirror,
		newRelay,
	)
}

// newRabbitPublisher returns nil when RabbitMQ is not configured.
func newRabbitPublisher(cfg *config.Config, logger logx.Logger) (*rabbitmq.Publisher, error) {
	return rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
}

// newRedisClient returns nil when Redis is not configured.
func newRedisClient(ctx context.Context, cfg *config.Config, logger logx.Logger) (*goredis.Client, error) {
	if cfg.Redis.Addr == "" {
		logger.Info("redis disabled, location mirror off")
		return nil, nil
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	return client, nil
}

func newLocationMirror(cfg *config.Config, client *goredis.Client) *redisrepo.LocationMirror {
	if client == nil {
		return nil
	}
	return redisrepo.NewLocationMirror(client, cfg.Redis.LocationTTL)
}

type relayIn struct {
	dig.In

	Config  *config.Config
	Logger  logx.Logger
	Metrics *metrics.Metrics
	Archive *repository.ArchiveRepo
	Rabbit  *rabbitmq.Publisher
	Mirror  *redisrepo.LocationMirror
}

// newRelay fans outward events to every configured destination. Nil
// destinations must not reach notify as typed nils.
func newRelay(in relayIn) *notify.Relay {
	n := in.Config.Notify
	retry := notify.RetryConfig{
		MaxAttempts: n.MaxAttempts,
		BaseDelay:   n.BaseDelay,
		MaxDelay:    n.MaxDelay,
	}
	target := func(name string, p notify.Publisher) notify.Target {
		return notify.Target{
			Name:      name,
			Publisher: notify.NewRetryingPublisher(name, p, in.Logger, in.Metrics.PublishRetries.WithLabelValues(name), retry),
		}
	}

	var targets []notify.Target
	if in.Archive != nil {
		targets = append(targets, target("archive", in.Archive))
	}
	if in.Mirror != nil {
		targets = append(targets, target("redis", in.Mirror))
	}
	if in.Rabbit != nil {
		targets = append(targets, target("rabbitmq", in.Rabbit))
	}

	return notify.NewRelay(in.Logger, n.QueueSize, notify.Metrics{
		Published: in.Metrics.EventsPublished,
		Failed:    in.Metrics.EventsFailed,
		Dropped:   in.Metrics.EventsDropped,
	}, targets...)
}
