package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port      int
	LogLevel  string
	DB        DB
	Dispatch  Dispatch
	Tracking  Tracking
	Kafka     Kafka
	RabbitMQ  RabbitMQ
	Redis     Redis
	Notify    Notify
	RateLimit RateLimit
	Pprof     PprofConfig
}

// DB stores Postgres connection settings.
type DB struct {
	Host string
	Port string
	User string
	Pass string
	Name string
}

// DSN returns a libpq-style connection URL.
func (d DB) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		d.User, d.Pass, net.JoinHostPort(d.Host, d.Port), d.Name)
}

// Dispatch stores courier offer settings.
type Dispatch struct {
	OfferWindow      time.Duration // how long a courier may hold an offer
	MaxDuration      time.Duration // overall dispatch deadline, 0 disables
	Retention        time.Duration // how long terminal records stay queryable
	OperationTimeout time.Duration
}

// Tracking stores broadcaster settings.
type Tracking struct {
	BufferSize int // per-subscriber queue length
}

// Kafka stores order event consumer settings. Empty Brokers disables the consumer.
type Kafka struct {
	Brokers []string
	GroupID string
	Topic   string
}

// Enabled reports whether the consumer has enough settings to start.
func (k Kafka) Enabled() bool {
	return len(k.Brokers) > 0 && k.GroupID != "" && k.Topic != ""
}

// RabbitMQ stores outward event publisher settings. Empty URL disables it.
type RabbitMQ struct {
	URL      string
	Exchange string
}

// Redis stores latest-location mirror settings. Empty Addr disables it.
type Redis struct {
	Addr        string
	Password    string
	DB          int
	LocationTTL time.Duration
}

// Notify stores outward event relay settings.
type Notify struct {
	QueueSize   int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimit stores location publish rate limiting settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// PprofConfig stores debug server settings. Non-loopback clients need basic auth.
type PprofConfig struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := &Config{
		Port:      DefaultPort(),
		LogLevel:  "info",
		DB:        DefaultDB(),
		Dispatch:  DefaultDispatch(),
		Tracking:  DefaultTracking(),
		Kafka:     DefaultKafka(),
		RabbitMQ:  DefaultRabbitMQ(),
		Redis:     DefaultRedis(),
		Notify:    DefaultNotify(),
		RateLimit: DefaultRateLimit(),
		Pprof:     DefaultPprof(),
	}

	if err := loadEnv(cfg); err != nil {
		return nil, err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pflag.DurationVar(&cfg.Dispatch.OfferWindow, "offer-window", cfg.Dispatch.OfferWindow, "how long a courier may hold an offer")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnv(cfg *Config) error {
	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return err
	}
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)

	cfg.DB.Host = envString("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envString("POSTGRES_PORT", cfg.DB.Port)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return fmt.Errorf("invalid POSTGRES_PORT %q: %w", cfg.DB.Port, err)
	}
	cfg.DB.User = envString("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envString("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envString("POSTGRES_DB", cfg.DB.Name)

	if cfg.Dispatch.OfferWindow, err = envDuration("DISPATCH_OFFER_WINDOW", cfg.Dispatch.OfferWindow); err != nil {
		return err
	}
	if cfg.Dispatch.MaxDuration, err = envDuration("DISPATCH_MAX_DURATION", cfg.Dispatch.MaxDuration); err != nil {
		return err
	}
	if cfg.Dispatch.Retention, err = envDuration("DISPATCH_RETENTION", cfg.Dispatch.Retention); err != nil {
		return err
	}
	if cfg.Dispatch.OperationTimeout, err = envDuration("DISPATCH_OPERATION_TIMEOUT", cfg.Dispatch.OperationTimeout); err != nil {
		return err
	}

	if cfg.Tracking.BufferSize, err = envInt("TRACKING_BUFFER_SIZE", cfg.Tracking.BufferSize); err != nil {
		return err
	}

	cfg.Kafka.Brokers = envList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.GroupID = envString("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.Topic = envString("KAFKA_TOPIC", cfg.Kafka.Topic)

	cfg.RabbitMQ.URL = envString("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.Exchange = envString("RABBITMQ_EXCHANGE", cfg.RabbitMQ.Exchange)

	cfg.Redis.Addr = envString("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envString("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = envInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return err
	}
	if cfg.Redis.LocationTTL, err = envDuration("REDIS_LOCATION_TTL", cfg.Redis.LocationTTL); err != nil {
		return err
	}

	if cfg.Notify.QueueSize, err = envInt("NOTIFY_QUEUE_SIZE", cfg.Notify.QueueSize); err != nil {
		return err
	}
	if cfg.Notify.MaxAttempts, err = envInt("NOTIFY_MAX_ATTEMPTS", cfg.Notify.MaxAttempts); err != nil {
		return err
	}
	if cfg.Notify.BaseDelay, err = envDuration("NOTIFY_BASE_DELAY", cfg.Notify.BaseDelay); err != nil {
		return err
	}
	if cfg.Notify.MaxDelay, err = envDuration("NOTIFY_MAX_DELAY", cfg.Notify.MaxDelay); err != nil {
		return err
	}

	if cfg.RateLimit.Enabled, err = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return err
	}
	if cfg.RateLimit.Rate, err = envFloat("RATE_LIMIT_RATE", cfg.RateLimit.Rate); err != nil {
		return err
	}
	if cfg.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return err
	}
	if cfg.RateLimit.TTL, err = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL); err != nil {
		return err
	}
	if cfg.RateLimit.MaxBuckets, err = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets); err != nil {
		return err
	}

	if cfg.Pprof.Enabled, err = envBool("PPROF_ENABLED", cfg.Pprof.Enabled); err != nil {
		return err
	}
	cfg.Pprof.Addr = envString("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = envString("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envString("PPROF_PASS", cfg.Pprof.Pass)
	return nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Dispatch.OfferWindow <= 0 {
		return fmt.Errorf("invalid offer window: %s", c.Dispatch.OfferWindow)
	}
	if c.Dispatch.MaxDuration < 0 {
		return fmt.Errorf("invalid dispatch max duration: %s", c.Dispatch.MaxDuration)
	}
	if c.Tracking.BufferSize <= 0 {
		return fmt.Errorf("invalid tracking buffer size: %d", c.Tracking.BufferSize)
	}
	if c.Pprof.Enabled && c.Pprof.Addr == "" {
		return fmt.Errorf("pprof enabled without address")
	}
	if c.Notify.QueueSize <= 0 || c.Notify.MaxAttempts <= 0 {
		return fmt.Errorf("invalid notify settings: queue=%d attempts=%d", c.Notify.QueueSize, c.Notify.MaxAttempts)
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
