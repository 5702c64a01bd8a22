package metrics

import (
	"testing"
	"time"

	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/presale-labs/presale-store/internal/metrics/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func Test_MetricsSink(t *testing.T) {
	l := zap.NewNop()

	t.Run("Should fan out to prometheus with merged labels", func(t *testing.T) {
		pm, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		require.NoError(t, err)

		sink, err := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{pm})
		require.NoError(t, err)

		err = sink.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{
			{Name: "kind", Value: "stake"},
			{Name: "reason", Value: "overclaim"},
		}, 1)
		assert.Nil(t, err)
		err = sink.Incr(metricsTypes.Metric_Incr_ClaimRejected, []metricsTypes.MetricsLabel{
			{Name: "kind", Value: "stake"},
			{Name: "reason", Value: "overclaim"},
		}, 1)
		assert.Nil(t, err)

		count, err := testutil.GatherAndCount(pm.Registry(), metricsTypes.Metric_Incr_ClaimRejected)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		assert.Nil(t, sink.Timing(metricsTypes.Metric_Timing_ClaimDuration, 5*time.Millisecond, []metricsTypes.MetricsLabel{
			{Name: "kind", Value: "vesting"},
		}))
		sink.Flush()
	})

	t.Run("Should ignore metrics that were never declared", func(t *testing.T) {
		pm, err := prometheus.NewPrometheusMetricsClient(&prometheus.PrometheusMetricsConfig{
			Metrics: metricsTypes.MetricTypes,
		}, l)
		require.NoError(t, err)

		sink, _ := NewMetricsSink(&MetricsSinkConfig{}, []metricsTypes.IMetricsClient{pm})
		assert.Nil(t, sink.Gauge("does_not_exist", 1, nil))
	})

	t.Run("Should do nothing without clients", func(t *testing.T) {
		sink := NewNoopMetricsSink()
		assert.Nil(t, sink.Incr(metricsTypes.Metric_Incr_UserCreated, nil, 1))
		sink.Flush()
	})
}
