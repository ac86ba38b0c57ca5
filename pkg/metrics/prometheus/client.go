// Package prometheus implements the client metrics interface with
// promauto-backed collectors registered on the shared metrics registry.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/shvgo/shvclient/pkg/client"
	"github.com/shvgo/shvclient/pkg/metrics"
)

func init() {
	metrics.RegisterClientMetricsConstructor(newClientMetrics)
}

// clientMetrics is the Prometheus implementation of client.Metrics.
type clientMetrics struct {
	framesReceived      *prometheus.CounterVec
	messagesSent        *prometheus.CounterVec
	rpcCalls            prometheus.Counter
	signalFanout        prometheus.Histogram
	pendingCalls        prometheus.Gauge
	activeSubscriptions prometheus.Gauge
	connected           prometheus.Gauge
}

func newClientMetrics() client.Metrics {
	reg := metrics.GetRegistry()

	return &clientMetrics{
		framesReceived: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shvc_frames_received_total",
				Help: "Total number of frames received from the broker by kind",
			},
			[]string{"kind"}, // "request", "response", "signal"
		),
		messagesSent: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "shvc_messages_sent_total",
				Help: "Total number of messages handed to the transport by kind",
			},
			[]string{"kind"},
		),
		rpcCalls: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "shvc_rpc_calls_total",
				Help: "Total number of outbound RPC calls issued by the application",
			},
		),
		signalFanout: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shvc_signal_fanout_subscribers",
				Help:    "Distribution of subscriber counts reached per inbound signal",
				Buckets: []float64{0, 1, 2, 5, 10, 50, 100},
			},
		),
		pendingCalls: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "shvc_pending_rpc_calls",
				Help: "Number of RPC calls awaiting a response",
			},
		),
		activeSubscriptions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "shvc_active_subscriptions",
				Help: "Number of registered notification sinks",
			},
		),
		connected: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "shvc_connected",
				Help: "1 while a broker connection is established, 0 otherwise",
			},
		),
	}
}

func (m *clientMetrics) FrameReceived(kind string) {
	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *clientMetrics) MessageSent(kind string) {
	m.messagesSent.WithLabelValues(kind).Inc()
}

func (m *clientMetrics) RPCCall() {
	m.rpcCalls.Inc()
}

func (m *clientMetrics) SignalFanout(subscribers int) {
	m.signalFanout.Observe(float64(subscribers))
}

func (m *clientMetrics) PendingCalls(n int) {
	m.pendingCalls.Set(float64(n))
}

func (m *clientMetrics) ActiveSubscriptions(n int) {
	m.activeSubscriptions.Set(float64(n))
}

func (m *clientMetrics) ConnectionState(connected bool) {
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
