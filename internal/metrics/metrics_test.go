package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackTicket(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TrackTicket(OpSold)
	m.TrackTicket(OpSold)
	m.TrackTicket(OpSoldOut)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ticketOps.WithLabelValues(OpSold)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticketOps.WithLabelValues(OpSoldOut)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TrackTicket(OpRedeemed)
		m.TrackInteraction("buyer", "text", time.Millisecond)
		m.TrackDeliveryError()
	})
}
