package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ScreenshotsCaptured  *prometheus.CounterVec
	ScreenshotsDeduped   prometheus.Counter
	AlertsCreated        *prometheus.CounterVec
	AlertsDeduplicated   prometheus.Counter
	ClassifierFallbacks  *prometheus.CounterVec
	ViolationSessions    prometheus.Counter
	DetectionFailures    prometheus.Counter
}

// NewMetrics registers the engine metrics. A nil registerer wires the
// metrics to a throwaway registry (used in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ScreenshotsCaptured: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_screenshots_captured_total",
			Help: "Evidence captures persisted, by trigger.",
		}, []string{"trigger"}),

		ScreenshotsDeduped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "monitoring_screenshots_deduplicated_total",
			Help: "Captures discarded as duplicates by content hash.",
		}),

		AlertsCreated: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_alerts_created_total",
			Help: "Alerts created, by type.",
		}, []string{"type"}),

		AlertsDeduplicated: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "monitoring_alerts_deduplicated_total",
			Help: "Alert creations merged into an existing active alert.",
		}),

		ClassifierFallbacks: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "monitoring_classifier_fallbacks_total",
			Help: "Classifier calls that degraded to the keyword heuristic, by stage.",
		}, []string{"stage"}),

		ViolationSessions: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "monitoring_violation_sessions_total",
			Help: "Violation sessions opened.",
		}),

		DetectionFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "monitoring_window_detection_failures_total",
			Help: "Active-window queries that returned an error.",
		}),
	}
}
