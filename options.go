// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package selector

import "time"

// config holds resolved Selector configuration.
type config struct {
	maxReceiveSize    int
	connectionMaxIdle time.Duration
	metricGroupPrefix string
	metricTags        map[string]string
	metricsPerConn    bool
	channelBuilder    ChannelBuilder
	clock             func() time.Time
	metricsRegistry   MetricsRegistry
	logger            Logger
}

const (
	// DefaultMaxReceiveSize is used when WithMaxReceiveSize is not given:
	// unbounded, i.e. receive frames of any advertised size.
	DefaultMaxReceiveSize = -1

	// DefaultConnectionMaxIdle is used when WithConnectionMaxIdle is not
	// given.
	DefaultConnectionMaxIdle = 10 * time.Minute

	// DefaultMetricGroupPrefix is used when WithMetricGroupPrefix is not
	// given.
	DefaultMetricGroupPrefix = "selector"
)

// Option configures a Selector instance.
type Option interface {
	applyOption(*config) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*config) error
}

func (o *optionImpl) applyOption(cfg *config) error {
	return o.applyFunc(cfg)
}

// WithMaxReceiveSize bounds the size, in bytes, of a single staged receive.
// A channel advertising a larger frame fails that connection rather than
// allocating an unbounded buffer. Pass DefaultMaxReceiveSize (the default)
// to leave it unbounded.
func WithMaxReceiveSize(n int) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.maxReceiveSize = n
		return nil
	}}
}

// WithConnectionMaxIdle sets how long a connection may go without I/O
// activity before Poll reaps it. Zero disables idle eviction entirely.
func WithConnectionMaxIdle(d time.Duration) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.connectionMaxIdle = d
		return nil
	}}
}

// WithMetricGroupPrefix sets the prefix used for the aggregate metric
// names the selector registers (default "selector"). Per-connection
// metrics are always named selector_connection_*, whatever the prefix.
func WithMetricGroupPrefix(prefix string) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.metricGroupPrefix = prefix
		return nil
	}}
}

// WithMetricTags attaches static label values (e.g. client-id) to every
// metric the selector registers.
func WithMetricTags(tags map[string]string) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.metricTags = tags
		return nil
	}}
}

// WithMetricsPerConnection enables the extra, higher-cardinality set of
// per-connection metrics (one series per connection id) in addition to
// the aggregate ones. Off by default.
func WithMetricsPerConnection(enabled bool) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.metricsPerConn = enabled
		return nil
	}}
}

// WithChannelBuilder supplies the ChannelBuilder used to construct a
// Channel for every new connection. Required — New returns an error if
// this is never set.
func WithChannelBuilder(b ChannelBuilder) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.channelBuilder = b
		return nil
	}}
}

// WithClock overrides the selector's time source. Intended for tests
// that need deterministic idle-eviction timing.
func WithClock(now func() time.Time) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.clock = now
		return nil
	}}
}

// WithMetricsRegistry supplies the registry metrics are registered
// against. Defaults to prometheus.DefaultRegisterer.
func WithMetricsRegistry(r MetricsRegistry) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.metricsRegistry = r
		return nil
	}}
}

// WithLogger overrides the selector's logger. Defaults to a logger
// writing JSON to os.Stderr.
func WithLogger(l Logger) Option {
	return &optionImpl{func(cfg *config) error {
		cfg.logger = l
		return nil
	}}
}

// resolveOptions applies Option instances over the documented defaults.
func resolveOptions(opts []Option) (*config, error) {
	cfg := &config{
		maxReceiveSize:    DefaultMaxReceiveSize,
		connectionMaxIdle: DefaultConnectionMaxIdle,
		metricGroupPrefix: DefaultMetricGroupPrefix,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.clock == nil {
		cfg.clock = time.Now
	}
	if cfg.logger == nil {
		cfg.logger = defaultLogger()
	}
	return cfg, nil
}
