package collector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shelly-exporter/internal/device"
	"shelly-exporter/internal/model"
)

const defaultMaxConcurrency = 8

// DeviceCollector is the per-device unit the fleet drives each cycle.
type DeviceCollector interface {
	Endpoint() model.Endpoint
	Collect(ctx context.Context) *device.Result
}

// Observer receives cycle outcomes, e.g. for self metrics or health.
type Observer interface {
	ObserveResourceError(host, resource string)
	ObserveCycle(stats CycleStats)
}

type CycleStats struct {
	Devices         int           `json:"devices"`
	FailedDevices   int           `json:"failed_devices"`
	FailedResources int           `json:"failed_resources"`
	Samples         int           `json:"samples"`
	Duration        time.Duration `json:"duration"`
	FinishedAt      time.Time     `json:"finished_at"`
}

// Fleet owns the shared families and the configured device collectors.
type Fleet struct {
	logger         *slog.Logger
	collectors     []DeviceCollector
	maxConcurrency int
	observers      []Observer

	mu       sync.Mutex
	families []*model.Family
	byName   map[string]*model.Family

	statsMu sync.RWMutex
	last    CycleStats
}

func NewFleet(logger *slog.Logger, collectors []DeviceCollector, maxConcurrency int, observers ...Observer) *Fleet {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	families := model.NewFleetFamilies()
	byName := make(map[string]*model.Family, len(families))
	for _, f := range families {
		byName[f.Name] = f
	}
	return &Fleet{
		logger:         logger,
		collectors:     collectors,
		maxConcurrency: maxConcurrency,
		observers:      observers,
		families:       families,
		byName:         byName,
	}
}

func (f *Fleet) Devices() int {
	return len(f.collectors)
}

// Collect runs one cycle and returns detached copies of the four families
// in the order meter_0, relay_0, status, settings. A cycle in which every
// device fails yields empty families.
func (f *Fleet) Collect(ctx context.Context) []*model.Family {
	return f.CollectWithin(ctx, 0)
}

// CollectWithin is Collect with the cycle bounded by timeout. The deadline
// starts once the cycle lock is held, so waiting behind an overlapping
// cycle does not eat into it. A timeout <= 0 adds no bound.
func (f *Fleet) CollectWithin(ctx context.Context, timeout time.Duration) []*model.Family {
	f.mu.Lock()
	defer f.mu.Unlock()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	for _, fam := range f.families {
		fam.Reset()
	}

	results := make([]*device.Result, len(f.collectors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.maxConcurrency)
	for i, c := range f.collectors {
		g.Go(func() error {
			results[i] = c.Collect(gctx)
			return nil
		})
	}
	_ = g.Wait()

	stats := CycleStats{Devices: len(f.collectors)}
	for _, res := range results {
		if res == nil {
			continue
		}
		f.merge(res)
		stats.Samples += res.SampleCount()
		if res.Failed() {
			stats.FailedDevices++
			stats.FailedResources += len(res.Errors)
			for _, rerr := range res.Errors {
				f.notifyResourceError(rerr.Host, rerr.Resource)
			}
		}
	}
	stats.Duration = time.Since(start)
	stats.FinishedAt = time.Now().UTC()
	f.finishCycle(stats)

	out := make([]*model.Family, len(f.families))
	for i, fam := range f.families {
		out[i] = fam.Clone()
	}
	return out
}

// LastCycle returns the stats of the most recent completed cycle.
func (f *Fleet) LastCycle() CycleStats {
	f.statsMu.RLock()
	defer f.statsMu.RUnlock()
	return f.last
}

func (f *Fleet) merge(res *device.Result) {
	for _, fam := range f.families {
		if samples := res.Samples[fam.Name]; len(samples) > 0 {
			fam.Add(samples...)
		}
	}
	for name := range res.Samples {
		if _, ok := f.byName[name]; !ok {
			f.logger.Warn("dropping samples for unknown family", "family", name, "host", res.Endpoint.Host)
		}
	}
}

func (f *Fleet) finishCycle(stats CycleStats) {
	f.statsMu.Lock()
	f.last = stats
	f.statsMu.Unlock()

	f.logger.Debug("collection cycle finished",
		"devices", stats.Devices,
		"failed_devices", stats.FailedDevices,
		"samples", stats.Samples,
		"duration", stats.Duration,
	)
	for _, o := range f.observers {
		o.ObserveCycle(stats)
	}
}

func (f *Fleet) notifyResourceError(host, resource string) {
	for _, o := range f.observers {
		o.ObserveResourceError(host, resource)
	}
}
