package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comicgen",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comicgen",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		},
		[]string{"method", "route"},
	)

	// Calls to the AI provider, by kind (story|image) and outcome (success|empty|error)
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comicgen",
			Subsystem: "ai",
			Name:      "generations_total",
			Help:      "Total generation calls to the AI provider",
		},
		[]string{"kind", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "comicgen",
			Subsystem: "ai",
			Name:      "generation_duration_seconds",
			Help:      "AI provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"kind"},
	)

	ComicsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "comicgen",
			Subsystem: "workflow",
			Name:      "comics_total",
			Help:      "Server side comic creation attempts by result",
		},
		[]string{"result"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, route, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, route, status).Inc()
	RequestDuration.WithLabelValues(method, route).Observe(durationSec)
}

// RecordGeneration records one AI provider call
func RecordGeneration(kind, outcome string, durationSec float64) {
	GenerationsTotal.WithLabelValues(kind, outcome).Inc()
	GenerationDuration.WithLabelValues(kind).Observe(durationSec)
}

// RecordComic records the result of a creation workflow
func RecordComic(result string) {
	ComicsTotal.WithLabelValues(result).Inc()
}
