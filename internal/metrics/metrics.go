package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "settlement"

// Recorder holds the service collectors. A nil *Recorder is valid and records
// nothing, so services can be built without metrics in tests.
type Recorder struct {
	ledgerMutations *prometheus.CounterVec
	ledgerConflicts prometheus.Counter
	captures        *prometheus.CounterVec
	releases        *prometheus.CounterVec
	withdrawals     *prometheus.CounterVec
	payoutLatency   prometheus.Histogram
	scanDuration    prometheus.Histogram
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	gatherer        prometheus.Gatherer
}

func NewRecorder(reg *prometheus.Registry) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		ledgerMutations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Balance ledger mutations by kind and result.",
		}, []string{"kind", "result"}),
		ledgerConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_conflicts_total",
			Help:      "Compare-and-swap conflicts on merchant balances.",
		}),
		captures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_captures_total",
			Help:      "Recorded payment captures by result.",
		}, []string{"result"}),
		releases: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_releases_total",
			Help:      "Settlement release attempts by result.",
		}, []string{"result"}),
		withdrawals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawals by terminal or intermediate status.",
		}, []string{"status"}),
		payoutLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payout_request_seconds",
			Help:      "Latency of payout API calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "release_scan_seconds",
			Help:      "Duration of one settlement scan.",
			Buckets:   prometheus.DefBuckets,
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}
}

func (r *Recorder) LedgerMutation(kind, result string) {
	if r == nil {
		return
	}
	r.ledgerMutations.WithLabelValues(kind, result).Inc()
}

func (r *Recorder) LedgerConflict() {
	if r == nil {
		return
	}
	r.ledgerConflicts.Inc()
}

func (r *Recorder) Capture(result string) {
	if r == nil {
		return
	}
	r.captures.WithLabelValues(result).Inc()
}

func (r *Recorder) Release(result string) {
	if r == nil {
		return
	}
	r.releases.WithLabelValues(result).Inc()
}

func (r *Recorder) Withdrawal(status string) {
	if r == nil {
		return
	}
	r.withdrawals.WithLabelValues(status).Inc()
}

func (r *Recorder) ObservePayout(start time.Time) {
	if r == nil {
		return
	}
	r.payoutLatency.Observe(time.Since(start).Seconds())
}

func (r *Recorder) ObserveScan(start time.Time) {
	if r == nil {
		return
	}
	r.scanDuration.Observe(time.Since(start).Seconds())
}

func (r *Recorder) ObserveHTTP(method, route string, status int, start time.Time) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

// Handler exposes the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
