// v0
// internal/metrics/metrics.go
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nrgchamp/strcontrol/internal/breaker"
	"nrgchamp/strcontrol/internal/deadline"
	"nrgchamp/strcontrol/internal/flood"
	"nrgchamp/strcontrol/internal/traffic"
)

// Metrics owns a private registry so several instances can coexist in tests. All
// methods are safe on a nil receiver.
type Metrics struct {
	reg *prometheus.Registry

	elapsed      *prometheus.HistogramVec
	verdicts     *prometheus.CounterVec
	readings     *prometheus.CounterVec
	invalid      prometheus.Counter
	alerts       *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	lightState   prometheus.Gauge
	transitions  prometheus.Counter
	cbState      *prometheus.GaugeVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		elapsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strcontrol_task_elapsed_seconds",
			Help:    "Measured duration of deadline-monitored units of work by task.",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .12, .2, .5, 1},
		}, []string{"task"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strcontrol_deadline_verdicts_total",
			Help: "Deadline verdicts by task and verdict (OK, MISS).",
		}, []string{"task", "verdict"}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strcontrol_readings_total",
			Help: "Valid readings classified by risk state.",
		}, []string{"state"}),
		invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strcontrol_readings_invalid_total",
			Help: "Readings rejected by validation.",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strcontrol_alerts_total",
			Help: "Alerts emitted by risk state.",
		}, []string{"state"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strcontrol_ingest_queue_depth",
			Help: "Readings pending in the ingestion channel after the last take.",
		}),
		lightState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "strcontrol_light_state",
			Help: "Current traffic light (0 Verde, 1 Amarillo, 2 Rojo, 3 Intermitente).",
		}),
		transitions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "strcontrol_light_transitions_total",
			Help: "Traffic light state changes.",
		}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
	m.reg.MustRegister(
		m.elapsed,
		m.verdicts,
		m.readings,
		m.invalid,
		m.alerts,
		m.queueDepth,
		m.lightState,
		m.transitions,
		m.cbState,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Write implements deadline.Sink.
func (m *Metrics) Write(r deadline.Record) {
	if m == nil {
		return
	}
	m.elapsed.WithLabelValues(r.Label).Observe(r.Elapsed.Seconds())
	m.verdicts.WithLabelValues(r.Label, string(r.Verdict)).Inc()
}

// ObserveReading implements flood.Observer.
func (m *Metrics) ObserveReading(state flood.RiskState, valid bool) {
	if m == nil {
		return
	}
	if !valid {
		m.invalid.Inc()
		return
	}
	m.readings.WithLabelValues(state.String()).Inc()
}

// ObserveQueueDepth implements flood.Observer.
func (m *Metrics) ObserveQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// Emit implements flood.AlertSink; it counts and never fails.
func (m *Metrics) Emit(_ context.Context, a flood.Alert) error {
	if m == nil {
		return nil
	}
	m.alerts.WithLabelValues(a.State.String()).Inc()
	return nil
}

// Observe implements traffic.Sink.
func (m *Metrics) Observe(ev traffic.Event) {
	if m == nil || ev.Kind != traffic.EventChange {
		return
	}
	m.transitions.Inc()
	m.lightState.Set(float64(ev.Snapshot.State))
}

// BreakerHook is suitable for breaker.Breaker.OnStateChange.
func (m *Metrics) BreakerHook(name string, s breaker.State) {
	if m == nil {
		return
	}
	v := 0.0
	switch s {
	case breaker.HalfOpen:
		v = 1
	case breaker.Open:
		v = 2
	}
	m.cbState.WithLabelValues(name).Set(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
			m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
	})
}
