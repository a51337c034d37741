package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CoreMetrics records outcomes of the transactional hot paths.
type CoreMetrics struct {
	checkouts     *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	reservations  *prometheus.CounterVec
	roomUnlocks   prometheus.Counter
}

// NewCoreMetrics registers the core metrics on the provided registerer.
func NewCoreMetrics(reg prometheus.Registerer) *CoreMetrics {
	if reg == nil {
		return &CoreMetrics{}
	}
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_confirmations_total",
		Help: "Payment confirmation callbacks by result.",
	}, []string{"result"})
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_total",
		Help: "Stock reservation attempts by result.",
	}, []string{"result"})
	roomUnlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "room_unlocks_total",
		Help: "Rooms that reached their unlock threshold.",
	})
	reg.MustRegister(checkouts, confirmations, reservations, roomUnlocks)
	return &CoreMetrics{
		checkouts:     checkouts,
		confirmations: confirmations,
		reservations:  reservations,
		roomUnlocks:   roomUnlocks,
	}
}

// IncCheckout counts one checkout attempt with the given result label.
func (m *CoreMetrics) IncCheckout(result string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncConfirmation counts one confirmation callback with the given result label.
func (m *CoreMetrics) IncConfirmation(result string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncReservation counts one reservation attempt with the given result label.
func (m *CoreMetrics) IncReservation(result string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(result)).Inc()
}

// IncRoomUnlock counts one room unlock.
func (m *CoreMetrics) IncRoomUnlock() {
	if m == nil || m.roomUnlocks == nil {
		return
	}
	m.roomUnlocks.Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}
