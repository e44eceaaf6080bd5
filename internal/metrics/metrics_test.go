package metrics_test

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/metrics"
)

func TestNew_RegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	a, b := metrics.New(), metrics.New()

	a.DispatchOffers.Inc()
	a.DispatchOffers.Inc()

	require.InDelta(t, 2, testutil.ToFloat64(a.DispatchOffers), 0)
	require.InDelta(t, 0, testutil.ToFloat64(b.DispatchOffers), 0)
}

func TestMetrics_ExposedOnRegistry(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.RateLimitExceeded.Inc()
	m.PublishRetries.WithLabelValues("rabbitmq").Inc()

	expected := `
# HELP rate_limit_exceeded_total Total number of rejected HTTP requests due to rate limiting
# TYPE rate_limit_exceeded_total counter
rate_limit_exceeded_total 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "rate_limit_exceeded_total"))
	require.InDelta(t, 1, testutil.ToFloat64(m.PublishRetries.WithLabelValues("rabbitmq")), 0)
}

func TestMetrics_Gauge(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	v := 3.0
	m.Gauge("dispatch_active", "Dispatches in progress", func() float64 { return v })

	n, err := testutil.GatherAndCount(m.Registry, "dispatch_active")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	expected := `
# HELP dispatch_active Dispatches in progress
# TYPE dispatch_active gauge
dispatch_active 3
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "dispatch_active"))
}
