package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BackendCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kawaltani_backend_calls_total",
			Help: "Total KawalTani backend API calls",
		},
		[]string{"endpoint", "status"},
	)

	BackendLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kawaltani_backend_latency_seconds",
			Help:    "Backend API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	UnauthorizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kawaltani_unauthorized_total",
			Help: "Backend responses that expired the session",
		},
	)

	PollRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kawaltani_poll_runs_total",
			Help: "Total dashboard poll runs",
		},
		[]string{"result"},
	)

	ActiveWarnings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kawaltani_active_warnings",
			Help: "Warnings in the most recent poll, by severity",
		},
		[]string{"severity"},
	)

	PhaseDetections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kawaltani_phase_detections_total",
			Help: "Rice growth phase detections by result",
		},
		[]string{"phase"},
	)

	AdvisoriesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kawaltani_advisories_total",
			Help: "Warning advisories by source",
		},
		[]string{"source"},
	)
)
