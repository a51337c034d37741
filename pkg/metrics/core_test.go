package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCoreMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCoreMetrics(reg)

	m.IncCheckout("success")
	m.IncCheckout("success")
	m.IncCheckout("Insufficient_Stock ")
	m.IncConfirmation("replay")
	m.IncReservation("conflict")
	m.IncRoomUnlock()

	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful checkouts, got %v", got)
	}
	if got := testutil.ToFloat64(m.checkouts.WithLabelValues("insufficient_stock")); got != 1 {
		t.Fatalf("expected normalized label count 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.roomUnlocks); got != 1 {
		t.Fatalf("expected 1 room unlock, got %v", got)
	}
}

func TestCoreMetricsNilSafe(t *testing.T) {
	var m *CoreMetrics
	m.IncCheckout("success")
	m.IncConfirmation("success")
	m.IncReservation("success")
	m.IncRoomUnlock()

	empty := NewCoreMetrics(nil)
	empty.IncCheckout("success")
}
