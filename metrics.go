package selector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRegistry is the subset of prometheus.Registerer the selector
// needs, satisfied directly by *prometheus.Registry or
// prometheus.DefaultRegisterer.
type MetricsRegistry = prometheus.Registerer

// metrics holds the selector's aggregate sensors, plus lazily
// registered per-connection sensors when enabled. Registration errors
// (e.g. a duplicate collector) are swallowed: a metrics outage must
// never abort Poll.
type metrics struct {
	registry MetricsRegistry
	tags     prometheus.Labels

	connectionsClosed  prometheus.Counter
	connectionsCreated prometheus.Counter
	networkIORate      prometheus.Counter
	outgoingByteRate   prometheus.Counter
	requestRate        prometheus.Counter
	requestSize        prometheus.Summary
	incomingByteRate   prometheus.Counter
	responseRate       prometheus.Counter
	selectRate         prometheus.Counter
	ioWaitTimeNanos    prometheus.Summary
	ioTimeNanos        prometheus.Summary
	connectionCount    prometheus.Gauge

	perConnection bool
	perConn       map[string]*perConnectionMetrics
}

// perConnectionMetrics is the higher-cardinality set registered lazily,
// one per connection id, only when metricsPerConnection is enabled.
type perConnectionMetrics struct {
	outgoingByteRate prometheus.Counter
	requestRate      prometheus.Counter
	requestSize      prometheus.Summary
	incomingByteRate prometheus.Counter
	responseRate     prometheus.Counter
	requestLatency   prometheus.Summary
}

func newMetrics(cfg *config) *metrics {
	registry := cfg.metricsRegistry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{}
	for k, v := range cfg.metricTags {
		labels[k] = v
	}
	prefix := cfg.metricGroupPrefix

	m := &metrics{
		registry:      registry,
		tags:          labels,
		perConnection: cfg.metricsPerConn,
		perConn:       make(map[string]*perConnectionMetrics),
	}

	counter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: prefix, Name: name, Help: help, ConstLabels: labels})
		registerBestEffort(registry, c)
		return c
	}
	summary := func(name, help string) prometheus.Summary {
		s := prometheus.NewSummary(prometheus.SummaryOpts{Namespace: prefix, Name: name, Help: help, ConstLabels: labels})
		registerBestEffort(registry, s)
		return s
	}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: prefix, Name: name, Help: help, ConstLabels: labels})
		registerBestEffort(registry, g)
		return g
	}

	m.connectionsClosed = counter("connections_closed_total", "connections closed")
	m.connectionsCreated = counter("connections_created_total", "connections created")
	m.networkIORate = counter("network_io_total", "network I/O operations (reads + writes)")
	m.outgoingByteRate = counter("outgoing_bytes_total", "bytes written")
	m.requestRate = counter("request_total", "sends completed")
	m.requestSize = summary("request_size_bytes", "send size in bytes")
	m.incomingByteRate = counter("incoming_bytes_total", "bytes read")
	m.responseRate = counter("response_total", "receives completed")
	m.selectRate = counter("select_total", "poller Select calls")
	m.ioWaitTimeNanos = summary("io_wait_time_ns", "nanoseconds spent blocked in select")
	m.ioTimeNanos = summary("io_time_ns", "nanoseconds spent dispatching ready keys")
	m.connectionCount = gauge("connection_count", "live connections")

	return m
}

// registerBestEffort registers c against r, ignoring duplicate-collector
// errors; any other registration failure is also swallowed. Metrics are
// best effort and must not abort the poll loop.
func registerBestEffort(r MetricsRegistry, c prometheus.Collector) {
	if r == nil {
		return
	}
	_ = r.Register(c)
}

func (m *metrics) connectionCreated() {
	m.connectionsCreated.Inc()
}

func (m *metrics) connectionClosed() {
	m.connectionsClosed.Inc()
}

// setConnectionCount mirrors the live-channel registry size into the
// connection-count gauge. Driven off registry size rather than paired
// inc/dec so a connection torn down before its connect ever finished
// cannot skew the gauge.
func (m *metrics) setConnectionCount(n int) {
	m.connectionCount.Set(float64(n))
}

func (m *metrics) bytesSent(id string, n int) {
	m.networkIORate.Inc()
	m.outgoingByteRate.Add(float64(n))
	m.requestRate.Inc()
	m.requestSize.Observe(float64(n))
	if pc := m.perConnectionFor(id); pc != nil {
		pc.outgoingByteRate.Add(float64(n))
		pc.requestRate.Inc()
		pc.requestSize.Observe(float64(n))
	}
}

func (m *metrics) bytesReceived(id string, n int) {
	m.networkIORate.Inc()
	m.incomingByteRate.Add(float64(n))
	m.responseRate.Inc()
	if pc := m.perConnectionFor(id); pc != nil {
		pc.incomingByteRate.Add(float64(n))
		pc.responseRate.Inc()
	}
}

func (m *metrics) selectTime(d time.Duration) {
	m.selectRate.Inc()
	m.ioWaitTimeNanos.Observe(float64(d.Nanoseconds()))
}

func (m *metrics) ioTime(d time.Duration) {
	m.ioTimeNanos.Observe(float64(d.Nanoseconds()))
}

// perConnectionFor lazily registers, and returns, the per-connection
// sensor set for id, or nil if per-connection metrics are disabled.
func (m *metrics) perConnectionFor(id string) *perConnectionMetrics {
	if !m.perConnection {
		return nil
	}
	if pc, ok := m.perConn[id]; ok {
		return pc
	}
	labels := prometheus.Labels{"id": id}
	for k, v := range m.tags {
		labels[k] = v
	}
	pc := &perConnectionMetrics{
		outgoingByteRate: prometheus.NewCounter(prometheus.CounterOpts{Name: "selector_connection_outgoing_bytes_total", ConstLabels: labels}),
		requestRate:      prometheus.NewCounter(prometheus.CounterOpts{Name: "selector_connection_requests_total", ConstLabels: labels}),
		requestSize:      prometheus.NewSummary(prometheus.SummaryOpts{Name: "selector_connection_request_size_bytes", ConstLabels: labels}),
		incomingByteRate: prometheus.NewCounter(prometheus.CounterOpts{Name: "selector_connection_incoming_bytes_total", ConstLabels: labels}),
		responseRate:     prometheus.NewCounter(prometheus.CounterOpts{Name: "selector_connection_responses_total", ConstLabels: labels}),
		requestLatency:   prometheus.NewSummary(prometheus.SummaryOpts{Name: "selector_connection_request_latency_ns", ConstLabels: labels}),
	}
	registerBestEffort(m.registry, pc.outgoingByteRate)
	registerBestEffort(m.registry, pc.requestRate)
	registerBestEffort(m.registry, pc.requestSize)
	registerBestEffort(m.registry, pc.incomingByteRate)
	registerBestEffort(m.registry, pc.responseRate)
	registerBestEffort(m.registry, pc.requestLatency)
	m.perConn[id] = pc
	return pc
}

// close unregisters every sensor, per-connection and aggregate, as the
// final step of tearing down the selector.
func (m *metrics) close() {
	for id := range m.perConn {
		m.forget(id)
	}
	unreg, ok := m.registry.(interface{ Unregister(prometheus.Collector) bool })
	if !ok {
		return
	}
	for _, c := range []prometheus.Collector{
		m.connectionsClosed, m.connectionsCreated, m.networkIORate,
		m.outgoingByteRate, m.requestRate, m.requestSize,
		m.incomingByteRate, m.responseRate, m.selectRate,
		m.ioWaitTimeNanos, m.ioTimeNanos, m.connectionCount,
	} {
		unreg.Unregister(c)
	}
}

// forget unregisters and drops id's per-connection sensors, if any.
func (m *metrics) forget(id string) {
	pc, ok := m.perConn[id]
	if !ok {
		return
	}
	delete(m.perConn, id)
	if unreg, ok := m.registry.(interface{ Unregister(prometheus.Collector) bool }); ok {
		unreg.Unregister(pc.outgoingByteRate)
		unreg.Unregister(pc.requestRate)
		unreg.Unregister(pc.requestSize)
		unreg.Unregister(pc.incomingByteRate)
		unreg.Unregister(pc.responseRate)
		unreg.Unregister(pc.requestLatency)
	}
}
