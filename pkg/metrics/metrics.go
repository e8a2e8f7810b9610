// Package metrics holds the Prometheus collectors exported by the verifier.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "nep413"
	subsystem = "verifier"
)

// Extraction results
const (
	ExtractionFound    = "found"
	ExtractionNotFound = "not_found"
)

// Metrics records verification outcomes
type Metrics struct {
	verifications  *prometheus.CounterVec
	extractions    *prometheus.CounterVec
	verifyDuration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with registerer
func NewMetrics(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verifications_total",
				Help:      "No of signed message verifications partitioned by reason",
			},
			[]string{"reason"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "extractions_total",
				Help:      "No of blob extraction attempts partitioned by result",
			},
			[]string{"result"},
		),
		verifyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "verify_duration_seconds",
				Help:      "Time spent verifying a signed message, including replay checks",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
			},
		),
	}

	for _, c := range []prometheus.Collector{m.verifications, m.extractions, m.verifyDuration} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// ObserveVerification counts one verification with its reason and duration
func (m *Metrics) ObserveVerification(reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(reason).Inc()
	m.verifyDuration.Observe(elapsed.Seconds())
}

// ObserveExtraction counts one blob extraction attempt
func (m *Metrics) ObserveExtraction(found bool) {
	if m == nil {
		return
	}
	result := ExtractionNotFound
	if found {
		result = ExtractionFound
	}
	m.extractions.WithLabelValues(result).Inc()
}
