package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry            *prometheus.Registry
	exportsTotal        *prometheus.CounterVec
	exportDuration      *prometheus.HistogramVec
	activeExports       prometheus.Gauge
	outputBytesTotal    prometheus.Counter
	pixelsRenderedTotal prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		exportsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelresize_worker_exports_total",
			Help: "Async exports by output format and final status.",
		}, []string{"format", "status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pixelresize_worker_export_duration_seconds",
			Help:    "Time to fetch, render and store one async export.",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "status"}),
		activeExports: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelresize_worker_active_exports",
			Help: "Exports currently rendering in this worker.",
		}),
		outputBytesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelresize_worker_output_bytes_total",
			Help: "Encoded bytes written by successful exports.",
		}),
		pixelsRenderedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelresize_worker_pixels_rendered_total",
			Help: "Target pixels rendered by successful exports.",
		}),
	}

	registry.MustRegister(
		m.exportsTotal,
		m.exportDuration,
		m.activeExports,
		m.outputBytesTotal,
		m.pixelsRenderedTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
