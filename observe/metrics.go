package observe

import (
	"context"
	"math/big"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	x402 "github.com/x402-foundation/x402-fetch"
)

// Payment outcomes recorded in x402_payments_total
const (
	PaymentSent        = "sent"
	PaymentSettled     = "settled"
	PaymentUnconfirmed = "unconfirmed"
	PaymentDeclined    = "declined"
	PaymentRejected    = "rejected"
)

// Metrics counts fetches and payments
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	payments *prometheus.CounterVec
	amount   *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_fetch_requests_total",
			Help: "Logical fetch calls by final state.",
		}, []string{"state"}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_payments_total",
			Help: "Payment attempts by outcome.",
		}, []string{"outcome"}),
		amount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "x402_payment_amount_total",
			Help: "Authorized amount sent, in the asset's smallest unit.",
		}, []string{"network"}),
	}
	m.registry.MustRegister(m.requests, m.payments, m.amount)
	return m
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe implements x402.Observer
func (m *Metrics) Observe(_ context.Context, event x402.Event) {
	switch event.State {
	case x402.StateRetried:
		m.payments.WithLabelValues(PaymentSent).Inc()
		if a := event.Authorization; a != nil && a.Amount != nil {
			amount, _ := new(big.Float).SetInt(a.Amount).Float64()
			m.amount.WithLabelValues(string(a.Requirement.Network)).Add(amount)
		}
	case x402.StateCompleted:
		m.requests.WithLabelValues(string(x402.StateCompleted)).Inc()
		if event.PaymentMade() {
			if event.Receipt != nil && event.Receipt.Settled {
				m.payments.WithLabelValues(PaymentSettled).Inc()
			} else {
				m.payments.WithLabelValues(PaymentUnconfirmed).Inc()
			}
		}
	case x402.StateFailed:
		m.requests.WithLabelValues(string(x402.StateFailed)).Inc()
		switch {
		case event.Decision != nil && !event.Decision.Accepted:
			m.payments.WithLabelValues(PaymentDeclined).Inc()
		case event.PaymentMade():
			m.payments.WithLabelValues(PaymentRejected).Inc()
		}
	}
}
