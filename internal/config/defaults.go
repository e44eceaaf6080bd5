package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "test_db",
}

var defaultDispatch = Dispatch{
	OfferWindow:      60 * time.Second,
	MaxDuration:      0,
	Retention:        10 * time.Minute,
	OperationTimeout: 3 * time.Second,
}

var defaultTracking = Tracking{
	BufferSize: 64,
}

var defaultKafka = Kafka{
	GroupID: "service-dispatch",
	Topic:   "orders",
}

var defaultRabbitMQ = RabbitMQ{
	Exchange: "dispatch_events",
}

var defaultRedis = Redis{
	LocationTTL: 30 * time.Minute,
}

var defaultNotify = Notify{
	QueueSize:   1024,
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    2 * time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5,
	Burst:      10,
	TTL:        5 * time.Minute,
	MaxBuckets: 100000,
}

var defaultPprof = PprofConfig{
	Enabled: false,
	Addr:    "127.0.0.1:6060",
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default dispatch settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}

// DefaultTracking returns the default broadcaster settings.
func DefaultTracking() Tracking {
	return defaultTracking
}

// DefaultKafka returns the default consumer settings (no brokers: disabled).
func DefaultKafka() Kafka {
	return defaultKafka
}

// DefaultRabbitMQ returns the default publisher settings (no URL: disabled).
func DefaultRabbitMQ() RabbitMQ {
	return defaultRabbitMQ
}

// DefaultRedis returns the default location mirror settings (no address: disabled).
func DefaultRedis() Redis {
	return defaultRedis
}

// DefaultNotify returns the default relay settings.
func DefaultNotify() Notify {
	return defaultNotify
}

// DefaultRateLimit returns the default rate limit settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}

// DefaultPprof returns the default debug server settings (disabled).
func DefaultPprof() PprofConfig {
	return defaultPprof
}
