// Package exporter exposes fleet collection cycles to Prometheus scrapes.
package exporter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"shelly-exporter/internal/model"
)

// FamilyCollector runs one collection cycle bounded by timeout and returns
// its families.
type FamilyCollector interface {
	CollectWithin(ctx context.Context, timeout time.Duration) []*model.Family
}

// FleetCollector is an unchecked prometheus.Collector: every Gather runs one
// fleet cycle and emits each sample as an untyped metric named
// "<family>_<sample>".
type FleetCollector struct {
	source  FamilyCollector
	timeout time.Duration
	logger  *slog.Logger
}

func NewFleetCollector(source FamilyCollector, timeout time.Duration, logger *slog.Logger) *FleetCollector {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &FleetCollector{source: source, timeout: timeout, logger: logger}
}

// Describe sends nothing; the metric set depends on what devices report.
func (c *FleetCollector) Describe(chan<- *prometheus.Desc) {}

func (c *FleetCollector) Collect(ch chan<- prometheus.Metric) {
	type series struct {
		desc   *prometheus.Desc
		value  float64
		values []string
	}

	descs := map[string]*prometheus.Desc{}
	index := map[string]int{}
	var out []series

	for _, fam := range c.source.CollectWithin(context.Background(), c.timeout) {
		for _, s := range fam.Samples() {
			name := MetricName(fam.Name, s.Name)
			labelNames := s.Labels.Names()
			labelValues := s.Labels.Values()
			descKey := name + "\xff" + strings.Join(labelNames, "\xff")
			desc, ok := descs[descKey]
			if !ok {
				desc = prometheus.NewDesc(name, fam.Help, labelNames, nil)
				descs[descKey] = desc
			}

			// The registry rejects a repeated series, so the last value wins.
			seriesKey := descKey + "\xfe" + strings.Join(labelValues, "\xff")
			if i, dup := index[seriesKey]; dup {
				c.logger.Debug("duplicate series in scrape, keeping last value",
					"metric", name, "family", fam.Name, "sample", s.Name, "labels", labelValues)
				out[i].value = s.Value
				continue
			}
			index[seriesKey] = len(out)
			out = append(out, series{desc: desc, value: s.Value, values: labelValues})
		}
	}

	for _, se := range out {
		m, err := prometheus.NewConstMetric(se.desc, prometheus.UntypedValue, se.value, se.values...)
		if err != nil {
			c.logger.Warn("skipping invalid sample", "desc", se.desc.String(), "error", err)
			continue
		}
		ch <- m
	}
}

// MetricName joins family and sample names and maps every character outside
// the Prometheus metric charset to '_'.
func MetricName(family, sample string) string {
	raw := family + "_" + sample
	var b strings.Builder
	b.Grow(len(raw))
	for i, r := range raw {
		switch {
		case r == '_' || r == ':',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
