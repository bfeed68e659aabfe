package exporter

import (
	"github.com/prometheus/client_golang/prometheus"

	"shelly-exporter/internal/collector"
)

const namespace = "shelly_exporter"

// SelfMetrics records the exporter's own collection outcomes.
type SelfMetrics struct {
	fetchErrors   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	devices       *prometheus.GaugeVec
	lastCycle     prometheus.Gauge
}

func NewSelfMetrics(reg prometheus.Registerer) *SelfMetrics {
	m := &SelfMetrics{
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Device sub-resource fetches that failed, by host and resource.",
		}, []string{"host", "resource"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of fleet collection cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
		devices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices",
			Help:      "Devices in the last collection cycle, by outcome.",
		}, []string{"state"}),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the last collection cycle finished.",
		}),
	}
	reg.MustRegister(m.fetchErrors, m.cycleDuration, m.devices, m.lastCycle)
	return m
}

func (m *SelfMetrics) ObserveResourceError(host, resource string) {
	m.fetchErrors.WithLabelValues(host, resource).Inc()
}

func (m *SelfMetrics) ObserveCycle(stats collector.CycleStats) {
	m.cycleDuration.Observe(stats.Duration.Seconds())
	m.devices.WithLabelValues("ok").Set(float64(stats.Devices - stats.FailedDevices))
	m.devices.WithLabelValues("failed").Set(float64(stats.FailedDevices))
	m.lastCycle.Set(float64(stats.FinishedAt.Unix()))
}
