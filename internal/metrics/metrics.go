// Package metrics holds the prometheus collectors of the bot.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ticket operation labels for TrackTicket.
const (
	OpSold     = "sold"
	OpSoldOut  = "sold_out"
	OpApproved = "approved"
	OpRejected = "rejected"
	OpRedeemed = "redeemed"
	OpRefunded = "refunded"
	OpExpired  = "expired"
)

// Metrics groups the collectors.  A nil *Metrics is valid and records
// nothing, which keeps tests free of registry plumbing.
type Metrics struct {
	ticketOps      *prometheus.CounterVec
	interactions   *prometheus.CounterVec
	handlerLatency *prometheus.HistogramVec
	deliveryErrors prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ticketOps: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbot_ticket_operations_total",
				Help: "Ticket lifecycle operations by outcome",
			},
			[]string{"op"},
		),
		interactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbot_interactions_total",
				Help: "Inbound chat interactions by flow and kind",
			},
			[]string{"flow", "kind"},
		),
		handlerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketbot_handler_duration_seconds",
				Help:    "Time spent handling one interaction",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
			},
			[]string{"flow"},
		),
		deliveryErrors: f.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketbot_delivery_errors_total",
				Help: "Outbound messages the transport refused",
			},
		),
	}
}

// TrackTicket counts one ticket operation.
func (m *Metrics) TrackTicket(op string) {
	if m == nil {
		return
	}
	m.ticketOps.WithLabelValues(op).Inc()
}

// TrackInteraction counts one interaction and observes its duration.
func (m *Metrics) TrackInteraction(flow, kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(flow, kind).Inc()
	m.handlerLatency.WithLabelValues(flow).Observe(d.Seconds())
}

// TrackDeliveryError counts a failed outbound message.
func (m *Metrics) TrackDeliveryError() {
	if m == nil {
		return
	}
	m.deliveryErrors.Inc()
}
