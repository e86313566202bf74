package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics exposes counters/histograms for the webhook relay flow.
type RelayMetrics struct {
	inboundTotal  *prometheus.CounterVec
	aiTotal       *prometheus.CounterVec
	aiLatency     prometheus.Histogram
	outboundTotal *prometheus.CounterVec
}

// NewRelayMetrics registers relay metrics. sessionCount, when non-nil, backs
// an active-sessions gauge.
func NewRelayMetrics(reg prometheus.Registerer, sessionCount func() float64) *RelayMetrics {
	m := &RelayMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "webhook",
			Name:      "inbound_total",
			Help:      "Total inbound Twilio webhooks",
		}, []string{"message_type", "status"}),
		aiTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "ai",
			Name:      "completions_total",
			Help:      "Total Gemini completion calls",
		}, []string{"status"}),
		aiLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "ai",
			Name:      "completion_latency_seconds",
			Help:      "Latency of Gemini completion calls",
			Buckets:   prometheus.DefBuckets,
		}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "messaging",
			Name:      "outbound_total",
			Help:      "Total outbound Twilio sends",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.aiTotal, m.aiLatency, m.outboundTotal)
	if sessionCount != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of live chat sessions",
		}, sessionCount))
	}
	return m
}

func (m *RelayMetrics) ObserveInbound(messageType, status string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(messageType, status).Inc()
}

func (m *RelayMetrics) ObserveCompletion(status string, seconds float64) {
	if m == nil {
		return
	}
	m.aiTotal.WithLabelValues(status).Inc()
	m.aiLatency.Observe(seconds)
}

func (m *RelayMetrics) ObserveOutbound(status string) {
	if m == nil {
		return
	}
	m.outboundTotal.WithLabelValues(status).Inc()
}
