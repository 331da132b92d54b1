// Package metrics owns the Prometheus registry and the collectors the
// service exports on /metrics.
//
// A nil *Metrics is valid and records nothing, so components can be built
// in tests without a registry.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/quotefault/internal/apperror"
)

const namespace = "quotefault"

// Outcome labels shared by mutation and dependency counters.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeInvalid     = "invalid"
	OutcomeNotFound    = "not_found"
	OutcomeForbidden   = "forbidden"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	operations    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	directory     *prometheus.HistogramVec
}

// New creates a registry with process and Go runtime collectors plus the
// service's own metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Quote and moderation operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by outcome.",
		}, []string{"outcome"}),
		directory: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "directory",
			Name:      "request_duration_seconds",
			Help:      "Directory lookups by call and outcome.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"call", "outcome"}),
	}
	reg.MustRegister(m.httpRequests, m.httpDuration, m.operations, m.notifications, m.directory)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP records one finished request. route is the chi route pattern,
// not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Operation records the outcome of a service operation.
func (m *Metrics) Operation(name string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, Outcome(err)).Inc()
}

// Notification records a delivery attempt. Its signature matches
// notify.Dispatcher.OnResult.
func (m *Metrics) Notification(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// Directory records one directory call. Its signature matches
// directory.ObserveFunc.
func (m *Metrics) Directory(call string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.directory.WithLabelValues(call, Outcome(err)).Observe(d.Seconds())
}

// Outcome classifies err into a label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, apperror.ErrConflict):
		return OutcomeRejected
	case errors.Is(err, apperror.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, apperror.ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, apperror.ErrForbidden):
		return OutcomeForbidden
	case errors.Is(err, apperror.ErrUnavailable):
		return OutcomeUnavailable
	default:
		return OutcomeError
	}
}
