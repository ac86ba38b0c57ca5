package metrics

import (
	"github.com/shvgo/shvclient/pkg/client"
)

// NewClientMetrics creates a Prometheus-backed client.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called). A nil
// handle is accepted by the client loop and results in zero overhead.
func NewClientMetrics() client.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPrometheusClientMetrics()
}

// newPrometheusClientMetrics is implemented in pkg/metrics/prometheus.
// The indirection avoids an import cycle while keeping the API clean.
var newPrometheusClientMetrics func() client.Metrics

// RegisterClientMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during package initialization.
func RegisterClientMetricsConstructor(constructor func() client.Metrics) {
	newPrometheusClientMetrics = constructor
}
