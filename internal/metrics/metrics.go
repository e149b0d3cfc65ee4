package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels used by the reconciler and the follow-up scheduler.
const (
	ResultCreated = "created"
	ResultUpdated = "updated"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
	ResultSent    = "sent"
)

// Collector holds the service's Prometheus collectors. A nil *Collector is
// valid and records nothing.
type Collector struct {
	outcomesTotal  *prometheus.CounterVec
	followupsTotal *prometheus.CounterVec
	passDuration   *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	gatherer       prometheus.Gatherer
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not panic.
func New(reg *prometheus.Registry) *Collector {
	c := &Collector{
		outcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_outcomes_total",
				Help: "Outcome records processed by the reconciler",
			},
			[]string{"result"},
		),
		followupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_followups_total",
				Help: "Follow-up attempts by result",
			},
			[]string{"result"},
		),
		passDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outreach_pass_duration_seconds",
				Help:    "Duration of sync and follow-up passes",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pass"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "outreach_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "outreach_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		gatherer: reg,
	}

	reg.MustRegister(c.outcomesTotal, c.followupsTotal, c.passDuration, c.httpRequests, c.httpDuration)
	return c
}

func (c *Collector) Outcome(result string) {
	if c == nil {
		return
	}
	c.outcomesTotal.WithLabelValues(result).Inc()
}

func (c *Collector) Followup(result string) {
	if c == nil {
		return
	}
	c.followupsTotal.WithLabelValues(result).Inc()
}

// ObservePass records how long a named pass took since start.
func (c *Collector) ObservePass(pass string, start time.Time) {
	if c == nil {
		return
	}
	c.passDuration.WithLabelValues(pass).Observe(time.Since(start).Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware counts requests by method and status.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		c.httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		c.httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
