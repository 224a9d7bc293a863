package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "clubmanager"

// ActionMetrics records outcome and latency for every dispatched action.
type ActionMetrics struct {
	duration      *prometheus.HistogramVec
	success       *prometheus.CounterVec
	failure       *prometheus.CounterVec
	informational *prometheus.CounterVec
}

// NewActionMetrics registers the action metrics on the provided registerer.
func NewActionMetrics(reg prometheus.Registerer) *ActionMetrics {
	if reg == nil {
		return &ActionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "action_duration_seconds",
		Help:      "Duration of dispatched actions in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"action"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_success_total",
		Help:      "Actions that completed without error.",
	}, []string{"action"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_failure_total",
		Help:      "Actions that returned an error, by error code.",
	}, []string{"action", "code"})
	informational := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "action_informational_total",
		Help:      "Actions answered with an informational notice.",
	}, []string{"action"})
	reg.MustRegister(duration, success, failure, informational)
	return &ActionMetrics{
		duration:      duration,
		success:       success,
		failure:       failure,
		informational: informational,
	}
}

// ObserveDuration records the duration for the named action.
func (m *ActionMetrics) ObserveDuration(action string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(action)).Observe(duration.Seconds())
}

func (m *ActionMetrics) IncSuccess(action string) {
	if m == nil || m.success == nil {
		return
	}
	m.success.WithLabelValues(normalizeLabel(action)).Inc()
}

func (m *ActionMetrics) IncFailure(action, code string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(action), normalizeLabel(strings.ToLower(code))).Inc()
}

func (m *ActionMetrics) IncInformational(action string) {
	if m == nil || m.informational == nil {
		return
	}
	m.informational.WithLabelValues(normalizeLabel(action)).Inc()
}

// WriteTextfile dumps everything gathered from g in the node-exporter textfile format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if g == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
