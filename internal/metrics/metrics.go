// Package metrics holds the Prometheus collectors for the relay.
//
// A nil *Metrics is valid and records nothing, so components can be built
// without a registry in tests.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "mcr"

// Callback outcomes.
const (
	OutcomeAccepted  = "accepted"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// Delivery results.
const (
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// Metrics groups every collector the relay exports.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CallbacksTotal      *prometheus.CounterVec
	CallbacksUnresolved *prometheus.CounterVec
	StoreWriteDuration  prometheus.Histogram

	DispatchQueued  prometheus.Counter
	DispatchDropped *prometheus.CounterVec
	DeliveriesTotal *prometheus.CounterVec
	SessionsActive  prometheus.Gauge
	STKPushTotal    *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"handler", "method"},
		),
		CallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_total",
				Help:      "Provider callbacks received, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		CallbacksUnresolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "callbacks_unresolved_total",
				Help:      "Stored callbacks with no subscription key, by the policy applied",
			},
			[]string{"policy"},
		),
		StoreWriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_write_duration_seconds",
				Help:      "Time spent appending a callback to the store",
				Buckets:   prometheus.DefBuckets,
			},
		),
		DispatchQueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_queued_total",
				Help:      "Notifications queued on a dispatch shard",
			},
		),
		DispatchDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_dropped_total",
				Help:      "Notifications dropped before delivery, by reason",
			},
			[]string{"reason"},
		),
		DeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deliveries_total",
				Help:      "Per-session notification sends, by result",
			},
			[]string{"result"},
		),
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Connected push sessions",
			},
		),
		STKPushTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stk_push_total",
				Help:      "STK push initiations, by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CallbacksTotal,
		m.CallbacksUnresolved,
		m.StoreWriteDuration,
		m.DispatchQueued,
		m.DispatchDropped,
		m.DeliveriesTotal,
		m.SessionsActive,
		m.STKPushTotal,
	)
	return m
}

func (m *Metrics) ObserveHTTP(handler, method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestDuration.WithLabelValues(handler, method).Observe(d.Seconds())
	m.HTTPRequestsTotal.WithLabelValues(handler, method, statusText(status)).Inc()
}

func (m *Metrics) Callback(kind, outcome string) {
	if m == nil {
		return
	}
	m.CallbacksTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Unresolved(policy string) {
	if m == nil {
		return
	}
	m.CallbacksUnresolved.WithLabelValues(policy).Inc()
}

func (m *Metrics) ObserveStoreWrite(d time.Duration) {
	if m == nil {
		return
	}
	m.StoreWriteDuration.Observe(d.Seconds())
}

func (m *Metrics) Queued() {
	if m == nil {
		return
	}
	m.DispatchQueued.Inc()
}

func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.DispatchDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.DeliveriesTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

func (m *Metrics) STKPush(result string) {
	if m == nil {
		return
	}
	m.STKPushTotal.WithLabelValues(result).Inc()
}

func statusText(code int) string {
	// small fixed set keeps label cardinality bounded
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
