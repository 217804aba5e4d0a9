package dbus

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a Prometheus collector for a connection: message counts by
// type and direction, in-flight pending calls, active match-rule
// subscriptions, and call round-trip latency (§2 ambient stack
// "Metrics"). A nil *Metrics is valid everywhere and is a no-op.
type Metrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	pendingCalls     prometheus.Gauge
	subscriptions    prometheus.Gauge
	callLatency      prometheus.Histogram
}

// NewMetrics registers a fresh collector with reg (pass
// prometheus.DefaultRegisterer for the global registry, or nil to skip
// registration and use the collector purely for its methods).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbus", Name: "messages_sent_total", Help: "Messages sent by type.",
		}, []string{"type"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dbus", Name: "messages_received_total", Help: "Messages received by type.",
		}, []string{"type"}),
		pendingCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbus", Name: "pending_calls", Help: "Outstanding method calls awaiting a reply.",
		}),
		subscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dbus", Name: "match_subscriptions", Help: "Active signal subscriptions.",
		}),
		callLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dbus", Name: "call_latency_seconds", Help: "Method call round-trip latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messagesSent, m.messagesReceived, m.pendingCalls, m.subscriptions, m.callLatency)
	}
	return m
}

func (m *Metrics) sent(t MessageType) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(messageTypeName(t)).Inc()
}

func (m *Metrics) received(t MessageType) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(messageTypeName(t)).Inc()
}

func (m *Metrics) pendingCallsSet(n int) {
	if m == nil {
		return
	}
	m.pendingCalls.Set(float64(n))
}

func (m *Metrics) subscriptionsSet(n int) {
	if m == nil {
		return
	}
	m.subscriptions.Set(float64(n))
}

func (m *Metrics) observeCallLatencySeconds(s float64) {
	if m == nil {
		return
	}
	m.callLatency.Observe(s)
}
