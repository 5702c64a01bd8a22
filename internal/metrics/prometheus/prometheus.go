package prometheus

import (
	"time"

	"github.com/presale-labs/presale-store/internal/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const defaultJobName = "presale"

type PrometheusMetricsConfig struct {
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig

	// PushGatewayUrl is where Flush pushes the registry. Commands are short lived,
	// so nothing is scraped; an empty url disables pushing.
	PushGatewayUrl string
	JobName        string
}

type PrometheusMetricsClient struct {
	logger   *zap.Logger
	config   *PrometheusMetricsConfig
	registry *prometheus.Registry

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func NewPrometheusMetricsClient(config *PrometheusMetricsConfig, l *zap.Logger) (*PrometheusMetricsClient, error) {
	client := &PrometheusMetricsClient{
		config:   config,
		logger:   l,
		registry: prometheus.NewRegistry(),

		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	if err := client.initializeTypes(); err != nil {
		return nil, err
	}
	return client, nil
}

func (pmc *PrometheusMetricsClient) Registry() *prometheus.Registry {
	return pmc.registry
}

func (pmc *PrometheusMetricsClient) exists(name string) bool {
	_, c := pmc.counters[name]
	_, g := pmc.gauges[name]
	_, h := pmc.histograms[name]
	return c || g || h
}

func (pmc *PrometheusMetricsClient) initializeTypes() error {
	for t, types := range pmc.config.Metrics {
		for _, mt := range types {
			if pmc.exists(mt.Name) {
				pmc.logger.Sugar().Warnw("Prometheus metric already exists",
					zap.String("type", string(t)),
					zap.String("name", mt.Name),
				)
				continue
			}
			var collector prometheus.Collector
			switch t {
			case metricsTypes.MetricsType_Incr:
				pmc.counters[mt.Name] = prometheus.NewCounterVec(prometheus.CounterOpts{Name: mt.Name}, mt.Labels)
				collector = pmc.counters[mt.Name]
			case metricsTypes.MetricsType_Gauge:
				pmc.gauges[mt.Name] = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: mt.Name}, mt.Labels)
				collector = pmc.gauges[mt.Name]
			case metricsTypes.MetricsType_Timing:
				pmc.histograms[mt.Name] = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: mt.Name}, mt.Labels)
				collector = pmc.histograms[mt.Name]
			default:
				continue
			}
			if err := pmc.registry.Register(collector); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatLabels(labels []metricsTypes.MetricsLabel) prometheus.Labels {
	l := make(prometheus.Labels)
	for _, label := range labels {
		l[label.Name] = label.Value
	}
	return l
}

func (pmc *PrometheusMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	m, ok := pmc.counters[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus counter not found", zap.String("name", name))
		return nil
	}
	c, err := m.GetMetricWith(formatLabels(labels))
	if err != nil {
		return err
	}
	c.Add(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.gauges[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus gauge not found", zap.String("name", name))
		return nil
	}
	g, err := m.GetMetricWith(formatLabels(labels))
	if err != nil {
		return err
	}
	g.Set(value)
	return nil
}

func (pmc *PrometheusMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	m, ok := pmc.histograms[name]
	if !ok {
		pmc.logger.Sugar().Warnw("Prometheus histogram not found", zap.String("name", name))
		return nil
	}
	h, err := m.GetMetricWith(formatLabels(labels))
	if err != nil {
		return err
	}
	h.Observe(float64(value.Milliseconds()))
	return nil
}

func (pmc *PrometheusMetricsClient) Flush() {
	if pmc.config.PushGatewayUrl == "" {
		return
	}
	job := pmc.config.JobName
	if job == "" {
		job = defaultJobName
	}
	if err := push.New(pmc.config.PushGatewayUrl, job).Gatherer(pmc.registry).Push(); err != nil {
		pmc.logger.Sugar().Errorw("Failed to push metrics to gateway",
			zap.String("url", pmc.config.PushGatewayUrl),
			zap.Error(err),
		)
	}
}
