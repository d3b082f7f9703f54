package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
	PaymentsPaid  *prometheus.CounterVec
	OrdersPlaced  prometheus.Counter
	OutboxBacklog prometheus.Gauge
	ReceiptsSent  *prometheus.CounterVec
}

// NewServerMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// in main and a fresh registry in tests.
func NewServerMetrics(reg prometheus.Registerer) *ServerMetrics {
	m := &ServerMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		PaymentsPaid: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "payments_confirmed_total",
			Help:      "Orders moved to paid, by provider.",
		}, []string{"provider"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_placed_total",
			Help:      "Orders created at checkout.",
		}),
		OutboxBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "outbox_pending_events",
			Help:      "Unpublished outbox events seen by the last poll.",
		}),
		ReceiptsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "receipts_total",
			Help:      "Purchase receipt attempts by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.Requests, m.LatencyMS, m.PaymentsPaid, m.OrdersPlaced, m.OutboxBacklog, m.ReceiptsSent)
	return m
}

// The helpers below accept a nil receiver so components can run without metrics.

func (m *ServerMetrics) ObserveRequest(route, method string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(route).Observe(float64(took.Milliseconds()))
}

func (m *ServerMetrics) PaymentConfirmed(provider string) {
	if m == nil {
		return
	}
	m.PaymentsPaid.WithLabelValues(provider).Inc()
}

func (m *ServerMetrics) OrderPlaced() {
	if m == nil {
		return
	}
	m.OrdersPlaced.Inc()
}

func (m *ServerMetrics) SetOutboxBacklog(n int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(n))
}

func (m *ServerMetrics) Receipt(result string) {
	if m == nil {
		return
	}
	m.ReceiptsSent.WithLabelValues(result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
