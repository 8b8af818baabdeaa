package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Callback("stk", OutcomeAccepted)
	m.Callback("stk", OutcomeAccepted)
	m.Callback("c2b", OutcomeMalformed)
	m.Unresolved("broadcast")
	m.Queued()
	m.Dropped("queue_full")
	m.Delivery(DeliveryDelivered)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.STKPush("ok")
	m.ObserveStoreWrite(5 * time.Millisecond)
	m.ObserveHTTP("stk-callback", http.MethodPost, http.StatusOK, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CallbacksTotal.WithLabelValues("stk", OutcomeAccepted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbacksTotal.WithLabelValues("c2b", OutcomeMalformed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CallbacksUnresolved.WithLabelValues("broadcast")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchQueued))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DispatchDropped.WithLabelValues("queue_full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("stk-callback", "POST", "2xx")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Callback("stk", OutcomeAccepted)
		m.Unresolved("drop")
		m.Queued()
		m.Dropped("queue_full")
		m.Delivery(DeliveryFailed)
		m.SessionOpened()
		m.SessionClosed()
		m.STKPush("error")
		m.ObserveStoreWrite(time.Second)
		m.ObserveHTTP("h", "GET", 500, time.Second)
	})
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "2xx", statusText(200))
	assert.Equal(t, "3xx", statusText(302))
	assert.Equal(t, "4xx", statusText(429))
	assert.Equal(t, "5xx", statusText(503))
}
