package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestServerMetrics_Counters(t *testing.T) {
	m := NewServerMetrics(prometheus.NewRegistry())

	m.ObserveRequest("/api/v1/cart", "GET", 200, 12*time.Millisecond)
	m.ObserveRequest("/api/v1/cart", "GET", 200, 3*time.Millisecond)
	m.PaymentConfirmed("stripe")
	m.OrderPlaced()
	m.SetOutboxBacklog(4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/api/v1/cart", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PaymentsPaid.WithLabelValues("stripe")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OrdersPlaced))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.OutboxBacklog))
}

func TestServerMetrics_NilReceiver(t *testing.T) {
	var m *ServerMetrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/", "GET", 200, time.Millisecond)
		m.PaymentConfirmed("paypal")
		m.OrderPlaced()
		m.SetOutboxBacklog(1)
		m.Receipt("sent")
	})
}
