package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbackup_requests_total",
			Help: "Total number of HTTP requests by method and status",
		},
		[]string{"method", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restbackup_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	BytesReadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restbackup_bytes_read_total",
			Help: "Total number of object bytes served to clients",
		},
	)

	BytesWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restbackup_bytes_written_total",
			Help: "Total number of object bytes accepted from clients",
		},
	)

	QuotaRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbackup_quota_rejections_total",
			Help: "Total number of writes rejected for exceeding repository quota",
		},
		[]string{"repo"},
	)

	ACLDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restbackup_acl_denials_total",
			Help: "Total number of requests denied by the ACL engine",
		},
		[]string{"repo", "op_class"},
	)

	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "restbackup_auth_failures_total",
			Help: "Total number of requests rejected at credential verification",
		},
	)

	RepositoriesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "restbackup_repositories_total",
			Help: "Total number of repositories known to the server",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		BytesReadTotal,
		BytesWrittenTotal,
		QuotaRejectionsTotal,
		ACLDenialsTotal,
		AuthFailuresTotal,
		RepositoriesTotal,
	)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
