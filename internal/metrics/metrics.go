package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AutosaveScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autosave_scheduled_total",
			Help: "Edits handed to the autosave scheduler",
		},
	)

	AutosaveFlushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autosave_flush_total",
			Help: "Autosave persistence calls by result",
		},
		[]string{"result"},
	)

	AutosaveInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "autosave_in_flight",
			Help: "Autosave persistence calls currently running",
		},
	)

	AutosaveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "autosave_save_duration_seconds",
			Help:    "Duration of autosave persistence calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	OpenSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "questionnaire_sessions_open",
			Help: "Questionnaire editing sessions currently open",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Active websocket connections",
		},
	)
)

var registerOnce sync.Once

// Register adds the collectors to the default registry. Safe to call twice.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			AutosaveScheduled,
			AutosaveFlushes,
			AutosaveInFlight,
			AutosaveDuration,
			OpenSessions,
			WSConnections,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
