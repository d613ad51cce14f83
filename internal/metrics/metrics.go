package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	triggerRuns         *prometheus.CounterVec
	triggerDuration     *prometheus.HistogramVec
	remindersSent       *prometheus.CounterVec
	remindersFailed     *prometheus.CounterVec
	lockClaims          *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	sendLatency         *prometheus.HistogramVec
	subscribersExpired  prometheus.Counter
}

// New registers the service metrics on reg. Tests pass a fresh
// prometheus.NewRegistry so repeated construction does not collide.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		triggerRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_trigger_runs_total",
				Help: "Scheduler trigger invocations by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		triggerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reminder_trigger_duration_seconds",
				Help:    "Wall time of one trigger invocation",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"category"},
		),
		remindersSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_sent_total",
				Help: "Total number of reminder messages delivered",
			},
			[]string{"category", "channel"},
		),
		remindersFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminders_failed_total",
				Help: "Total number of reminder messages that failed",
			},
			[]string{"category", "reason"},
		),
		lockClaims: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reminder_lock_claims_total",
				Help: "Reminder lock claim attempts by result",
			},
			[]string{"result"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prayer_time_cache_lookups_total",
				Help: "Prayer time resolution by source",
			},
			[]string{"result"},
		),
		sendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reminder_send_latency_seconds",
				Help:    "Latency of a single transport send",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"channel"},
		),
		subscribersExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "subscribers_deactivated_total",
				Help: "Subscribers deactivated after a permanent endpoint failure",
			},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func (m *Metrics) RecordTrigger(category, outcome string, duration time.Duration) {
	m.triggerRuns.WithLabelValues(category, outcome).Inc()
	m.triggerDuration.WithLabelValues(category).Observe(duration.Seconds())
}

func (m *Metrics) RecordSent(category, channel string, n int) {
	m.remindersSent.WithLabelValues(category, channel).Add(float64(n))
}

func (m *Metrics) RecordFailed(category, reason string, n int) {
	m.remindersFailed.WithLabelValues(category, reason).Add(float64(n))
}

func (m *Metrics) RecordLockClaim(result string) {
	m.lockClaims.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheLookup(result string) {
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordSendLatency(channel string, latency time.Duration) {
	m.sendLatency.WithLabelValues(channel).Observe(latency.Seconds())
}

func (m *Metrics) RecordDeactivated(n int) {
	m.subscribersExpired.Add(float64(n))
}
