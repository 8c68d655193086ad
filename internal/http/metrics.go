package http

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	registry *prometheus.Registry

	ResolutionsTotal *prometheus.CounterVec
	PlaybackTotal    *prometheus.CounterVec
	ProxyTotal       *prometheus.CounterVec
	ProxyBytesTotal  prometheus.Counter
	ErrorsTotal      *prometheus.CounterVec
	QueueLength      prometheus.Gauge
	ResolutionTime   prometheus.Histogram
}

// newMetrics builds all collectors on a private registry so multiple server
// instances (and tests) never collide on the global one.
func newMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragam_resolutions_total",
				Help: "Total number of track resolution attempts",
			},
			[]string{"source", "status"},
		),
		PlaybackTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragam_playback_events_total",
				Help: "Total number of playback transport events",
			},
			[]string{"event"},
		),
		ProxyTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragam_proxy_requests_total",
				Help: "Total number of proxied stream requests",
			},
			[]string{"status"},
		),
		ProxyBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ragam_proxy_bytes_total",
				Help: "Total bytes forwarded by the stream proxy",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragam_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		QueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ragam_queue_length",
				Help: "Current number of tracks in the queue",
			},
		),
		ResolutionTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ragam_resolution_duration_seconds",
				Help:    "Time spent resolving tracks to stream URLs",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	metrics.registry.MustRegister(
		metrics.ResolutionsTotal,
		metrics.PlaybackTotal,
		metrics.ProxyTotal,
		metrics.ProxyBytesTotal,
		metrics.ErrorsTotal,
		metrics.QueueLength,
		metrics.ResolutionTime,
	)

	return metrics
}
