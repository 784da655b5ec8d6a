package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions    prometheus.Gauge
	sessionsTotal     *prometheus.CounterVec
	eventsAppended    *prometheus.CounterVec
	agentCallTotal    *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	agentErrorsTotal  *prometheus.CounterVec
	longPollDuration  prometheus.Histogram
	pushSubscribers   prometheus.Gauge
	archiveTotal      *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current active session count.",
				},
			),
			sessionsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total sessions by final status.",
				},
				[]string{"status"},
			),
			eventsAppended: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "events_appended_total",
					Help: "Total events appended to session logs by type.",
				},
				[]string{"type"},
			),
			agentCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_call_total",
					Help: "Total agent calls by role and status.",
				},
				[]string{"role", "status"},
			),
			agentCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_call_duration_seconds",
					Help:    "Agent call duration in seconds by role.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"role"},
			),
			agentErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_errors_total",
					Help: "Total agent call errors by role.",
				},
				[]string{"role"},
			),
			longPollDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "long_poll_duration_seconds",
					Help:    "Long-poll request duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			pushSubscribers: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "push_subscribers",
					Help: "Current push subscriber count across sessions.",
				},
			),
			archiveTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "archive_total",
					Help: "Total transcript archive writes by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsTotal,
			m.eventsAppended,
			m.agentCallTotal,
			m.agentCallDuration,
			m.agentErrorsTotal,
			m.longPollDuration,
			m.pushSubscribers,
			m.archiveTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// SetActiveSessions records the current registered session count.
func SetActiveSessions(n int) {
	getMetrics().activeSessions.Set(float64(n))
}

// RecordSessionFinal counts a session reaching a terminal status.
func RecordSessionFinal(status string) {
	getMetrics().sessionsTotal.WithLabelValues(status).Inc()
}

// RecordEventAppended counts one appended event by type.
func RecordEventAppended(eventType string) {
	getMetrics().eventsAppended.WithLabelValues(eventType).Inc()
}

// RecordAgentCall records one model call with its duration and outcome.
func RecordAgentCall(role string, d time.Duration, err error) {
	m := getMetrics()
	status := "success"
	if err != nil {
		status = "error"
		m.agentErrorsTotal.WithLabelValues(role).Inc()
	}
	m.agentCallTotal.WithLabelValues(role, status).Inc()
	m.agentCallDuration.WithLabelValues(role).Observe(d.Seconds())
}

// RecordLongPoll records the server-side duration of one long-poll request.
func RecordLongPoll(d time.Duration) {
	getMetrics().longPollDuration.Observe(d.Seconds())
}

// IncPushSubscribers counts one push subscription opening. The gauge
// tracks the process-wide total across all sessions and clients.
func IncPushSubscribers() {
	getMetrics().pushSubscribers.Inc()
}

// DecPushSubscribers counts one push subscription closing.
func DecPushSubscribers() {
	getMetrics().pushSubscribers.Dec()
}

// RecordArchive counts one archive write.
func RecordArchive(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	getMetrics().archiveTotal.WithLabelValues(status).Inc()
}
