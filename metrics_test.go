package selector

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_AggregateCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := &config{metricGroupPrefix: "test", metricsRegistry: reg}
	m := newMetrics(cfg)

	m.connectionCreated()
	m.connectionCreated()
	m.connectionClosed()
	m.setConnectionCount(1)
	m.bytesSent("a", 10)
	m.bytesReceived("a", 5)
	m.selectTime(time.Millisecond)
	m.ioTime(time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.connectionsCreated))
	require.Equal(t, float64(1), testutil.ToFloat64(m.connectionsClosed))
	require.Equal(t, float64(1), testutil.ToFloat64(m.connectionCount))
	require.Equal(t, float64(10), testutil.ToFloat64(m.outgoingByteRate))
	require.Equal(t, float64(5), testutil.ToFloat64(m.incomingByteRate))
}

func TestMetrics_PerConnectionDisabledByDefault(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := &config{metricGroupPrefix: "test2", metricsRegistry: reg}
	m := newMetrics(cfg)

	require.Nil(t, m.perConnectionFor("conn-1"))
}

func TestMetrics_PerConnectionLazilyRegisteredAndForgotten(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := &config{metricGroupPrefix: "test3", metricsRegistry: reg, metricsPerConn: true}
	m := newMetrics(cfg)

	pc := m.perConnectionFor("conn-1")
	require.NotNil(t, pc)
	// A second lookup for the same id returns the same sensor set.
	require.Same(t, pc, m.perConnectionFor("conn-1"))

	m.forget("conn-1")
	_, stillTracked := m.perConn["conn-1"]
	require.False(t, stillTracked)
}

func TestMetrics_DuplicateRegistrationIsBestEffort(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := &config{metricGroupPrefix: "dup", metricsRegistry: reg}

	require.NotPanics(t, func() {
		newMetrics(cfg)
		newMetrics(cfg) // second instance reuses identical metric names
	})
}
