// Package metrics exposes Prometheus collectors for polls, checks and API
// requests, plus the HTTP server that serves them.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"acctcheck/internal/checker"
	"acctcheck/internal/remote"
)

const namespace = "acctcheck"

// Metrics owns a private registry so tests and multiple instances do not clash.
type Metrics struct {
	reg *prometheus.Registry

	polls        *prometheus.CounterVec
	pollDuration prometheus.Histogram
	lastPollOK   prometheus.Gauge
	scheduled    *prometheus.CounterVec
	checks       *prometheus.CounterVec
	requests     *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_total",
			Help: "Poll cycles by result.",
		}, []string{"result"}),
		pollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "poll_duration_seconds",
			Help:    "Duration of successful poll cycles.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastPollOK: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_successful_poll_timestamp_seconds",
			Help: "Unix time of the last successful poll.",
		}),
		scheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "timer_changes_total",
			Help: "Timer map changes by action (scheduled, kept, cleared).",
		}, []string{"action"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checks_total",
			Help: "Fired account checks by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "Remote API requests by endpoint and result.",
		}, []string{"endpoint", "result"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "Remote API request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.polls, m.pollDuration, m.lastPollOK, m.scheduled, m.checks, m.requests, m.reqDuration,
	)
	for _, o := range checker.Outcomes() {
		m.checks.WithLabelValues(string(o))
	}
	for _, r := range []string{"ok", "error"} {
		m.polls.WithLabelValues(r)
	}
	return m
}

// Registry returns the registry backing /metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// TrackPending exports the live timer count.
func (m *Metrics) TrackPending(count func() int) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "pending_checks",
		Help: "Accounts with a live check timer.",
	}, func() float64 { return float64(count()) }))
}

// TrackBusDrops exports the event bus drop counter.
func (m *Metrics) TrackBusDrops(dropped func() uint64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace, Name: "eventbus_dropped_total",
		Help: "Events dropped because a subscriber was slow.",
	}, func() float64 { return float64(dropped()) }))
}

// ObservePoll records one poll cycle.
func (m *Metrics) ObservePoll(rep checker.CycleReport, err error) {
	if err != nil {
		m.polls.WithLabelValues("error").Inc()
		return
	}
	m.polls.WithLabelValues("ok").Inc()
	m.pollDuration.Observe(rep.Took.Seconds())
	m.lastPollOK.SetToCurrentTime()
	m.scheduled.WithLabelValues("scheduled").Add(float64(rep.Scheduled))
	m.scheduled.WithLabelValues("kept").Add(float64(rep.Kept))
	m.scheduled.WithLabelValues("cleared").Add(float64(rep.Cleared))
}

// ObserveCheck implements checker.Observer.
func (m *Metrics) ObserveCheck(res checker.CheckResult) {
	m.checks.WithLabelValues(string(res.Outcome)).Inc()
}

// ObserveRequest implements remote.RequestObserver.
func (m *Metrics) ObserveRequest(endpoint string, took time.Duration, err error) {
	m.requests.WithLabelValues(endpoint, requestResult(err)).Inc()
	m.reqDuration.WithLabelValues(endpoint).Observe(took.Seconds())
}

func requestResult(err error) string {
	if err == nil {
		return "ok"
	}
	if _, ok := remote.IsAPIError(err); ok {
		return "api_error"
	}
	var he *remote.HTTPError
	if errors.As(err, &he) {
		return "http_error"
	}
	return "error"
}

var (
	_ checker.Observer       = (*Metrics)(nil)
	_ remote.RequestObserver = (*Metrics)(nil)
)
