package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const MetricsNamespace = "pushstream_latency"

// LatencyBuckets are histogram buckets in seconds around the default 0.5s
// alert threshold.
var LatencyBuckets = []float64{0.005, 0.01, 0.02, 0.05, 0.1, 0.2, 0.5, 1, 2, 5}

// PrometheusPublisher exports events as Prometheus metrics.
type PrometheusPublisher struct {
	gatherer prometheus.Gatherer

	latency    prometheus.Histogram
	lastLat    prometheus.Gauge
	published  prometheus.Counter
	publishRTT prometheus.Histogram
	received   prometheus.Counter
	misses     prometheus.Counter
	samples    *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	errors     *prometheus.CounterVec
	connected  *prometheus.GaugeVec
}

// NewPrometheusPublisher registers the probe metrics on reg. A nil reg gets a
// fresh registry.
func NewPrometheusPublisher(reg *prometheus.Registry) (*PrometheusPublisher, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	p := &PrometheusPublisher{
		gatherer: reg,
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "latency_seconds",
			Help:      "A histogram of publish-to-receive latency",
			Buckets:   LatencyBuckets,
		}),
		lastLat: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_latency_seconds",
			Help:      "Most recent publish-to-receive latency",
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "messages_published_total",
			Help:      "Messages acknowledged by the broker",
		}),
		publishRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "publish_duration_seconds",
			Help:      "Publish request round trip",
			Buckets:   LatencyBuckets,
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "messages_received_total",
			Help:      "Framed messages read from the subscription",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "timestamp_misses_total",
			Help:      "Framed messages without a timestamp marker",
		}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "samples_total",
			Help:      "Latency samples by class",
		}, []string{"class"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "reconnects_total",
			Help:      "Reconnect attempts by role",
		}, []string{"role"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "errors_total",
			Help:      "Role errors by role, context and severity",
		}, []string{"role", "context", "severity"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "connected",
			Help:      "1 while the role holds a live broker session",
		}, []string{"role"}),
	}

	for _, c := range []prometheus.Collector{
		p.latency, p.lastLat, p.published, p.publishRTT, p.received,
		p.misses, p.samples, p.reconnects, p.errors, p.connected,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	p.connected.WithLabelValues(string(RolePublisher)).Set(0)
	p.connected.WithLabelValues(string(RoleSubscriber)).Set(0)
	return p, nil
}

func (p *PrometheusPublisher) Publish(event TelemetryEvent) {
	switch e := event.(type) {
	case MessagePublished:
		p.published.Inc()
		p.publishRTT.Observe(e.Duration.Seconds())
	case MessageReceived:
		p.received.Inc()
	case TimestampMissing:
		p.misses.Inc()
	case LatencyComputed:
		p.latency.Observe(e.Sample.Latency)
		p.lastLat.Set(e.Sample.Latency)
		p.samples.WithLabelValues(e.Sample.Class.String()).Inc()
	case ConnectionStatusChanged:
		v := 0.0
		if e.Connected {
			v = 1
		}
		p.connected.WithLabelValues(string(e.Role)).Set(v)
	case ReconnectScheduled:
		p.reconnects.WithLabelValues(string(e.Role)).Inc()
	case RoleError:
		p.errors.WithLabelValues(string(e.Role), e.Context, e.Severity.String()).Inc()
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusPublisher) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (p *PrometheusPublisher) Gatherer() prometheus.Gatherer {
	return p.gatherer
}
