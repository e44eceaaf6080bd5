package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector of the service, registered on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	DispatchOffers   prometheus.Counter
	DispatchAccepted prometheus.Counter
	DispatchFailed   prometheus.Counter
	StaleOffers      prometheus.Counter
	OfferTimeouts    prometheus.Counter
	TimersFired      prometheus.Counter

	LocationsPublished prometheus.Counter
	StatusesPublished  prometheus.Counter
	SubscribersDropped prometheus.Counter

	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
	EventsDropped   prometheus.Counter
	PublishRetries  *prometheus.CounterVec

	RateLimitExceeded prometheus.Counter

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them, with the Go and process
// collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),

		DispatchOffers:   newCounter("dispatch_offers_total", "Total number of offers made to couriers"),
		DispatchAccepted: newCounter("dispatch_accepted_total", "Total number of dispatches accepted by a courier"),
		DispatchFailed:   newCounter("dispatch_failed_total", "Total number of dispatches that ended without a courier"),
		StaleOffers:      newCounter("dispatch_stale_offers_total", "Total number of responses and timeouts for offers that were no longer active"),
		OfferTimeouts:    newCounter("dispatch_offer_timeouts_total", "Total number of offers that expired"),
		TimersFired:      newCounter("scheduler_timers_fired_total", "Total number of offer timers that fired"),

		LocationsPublished: newCounter("tracking_locations_published_total", "Total number of courier location samples published"),
		StatusesPublished:  newCounter("tracking_statuses_published_total", "Total number of order statuses published"),
		SubscribersDropped: newCounter("tracking_subscribers_dropped_total", "Total number of subscribers dropped for being slow or failing"),

		EventsPublished: newCounter("notify_events_published_total", "Total number of outward events handed to every publisher"),
		EventsFailed:    newCounter("notify_events_failed_total", "Total number of outward events that failed on at least one publisher"),
		EventsDropped:   newCounter("notify_events_dropped_total", "Total number of outward events dropped because the queue was full"),
		PublishRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notify_publish_retries_total",
			Help: "Total number of retry attempts performed by event publishers",
		}, []string{"target"}),

		RateLimitExceeded: newCounter("rate_limit_exceeded_total", "Total number of rejected HTTP requests due to rate limiting"),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}

	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.DispatchOffers, m.DispatchAccepted, m.DispatchFailed,
		m.StaleOffers, m.OfferTimeouts, m.TimersFired,
		m.LocationsPublished, m.StatusesPublished, m.SubscribersDropped,
		m.EventsPublished, m.EventsFailed, m.EventsDropped, m.PublishRetries,
		m.RateLimitExceeded,
		m.HTTPRequests, m.HTTPRequestDuration,
	)
	return m
}

// Gauge registers a gauge whose value is read from fn at scrape time.
func (m *Metrics) Gauge(name, help string, fn func() float64) {
	m.Registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
}
