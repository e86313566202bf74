package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRelayMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg, func() float64 { return 3 })
	m.ObserveInbound("text", "success")
	m.ObserveCompletion("success", 0.42)
	m.ObserveOutbound("delivered")
}

func TestRelayMetricsWithoutSessionGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRelayMetrics(reg, nil)
	m.ObserveOutbound("failed")
}

func TestRelayMetricsNilSafe(t *testing.T) {
	var m *RelayMetrics
	m.ObserveInbound("text", "success")
	m.ObserveCompletion("error", 0.1)
	m.ObserveOutbound("delivered")
}
