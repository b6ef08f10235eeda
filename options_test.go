package selector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mionet/selector/channel"
)

func TestResolveOptions_Defaults(t *testing.T) {
	cfg, err := resolveOptions(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxReceiveSize, cfg.maxReceiveSize)
	require.Equal(t, DefaultConnectionMaxIdle, cfg.connectionMaxIdle)
	require.Equal(t, DefaultMetricGroupPrefix, cfg.metricGroupPrefix)
	require.NotNil(t, cfg.clock)
	require.NotNil(t, cfg.logger)
}

func TestResolveOptions_AppliesOverrides(t *testing.T) {
	builder := channel.NewPlaintextChannelBuilder()
	fixedTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cfg, err := resolveOptions([]Option{
		WithMaxReceiveSize(1024),
		WithConnectionMaxIdle(5 * time.Minute),
		WithMetricGroupPrefix("custom"),
		WithMetricTags(map[string]string{"env": "test"}),
		WithMetricsPerConnection(true),
		WithChannelBuilder(builder),
		WithClock(func() time.Time { return fixedTime }),
	})
	require.NoError(t, err)
	require.Equal(t, 1024, cfg.maxReceiveSize)
	require.Equal(t, 5*time.Minute, cfg.connectionMaxIdle)
	require.Equal(t, "custom", cfg.metricGroupPrefix)
	require.Equal(t, map[string]string{"env": "test"}, cfg.metricTags)
	require.True(t, cfg.metricsPerConn)
	require.Same(t, builder, cfg.channelBuilder)
	require.True(t, cfg.clock().Equal(fixedTime))
}

func TestResolveOptions_NilOptionIgnored(t *testing.T) {
	cfg, err := resolveOptions([]Option{nil, WithMaxReceiveSize(99)})
	require.NoError(t, err)
	require.Equal(t, 99, cfg.maxReceiveSize)
}
