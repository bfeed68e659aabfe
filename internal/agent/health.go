package agent

import (
	"sync/atomic"
	"time"

	"shelly-exporter/internal/collector"
)

const (
	statusOK       = "ok"
	statusDegraded = "degraded"
	statusDown     = "down"
)

// HealthStatus tracks cycle and push outcomes. It observes fleet cycles.
type HealthStatus struct {
	pushEnabled     bool
	streamConnected atomic.Bool
	lastCycleAt     atomic.Int64
	lastPushAt      atomic.Int64
	devices         atomic.Int64
	failedDevices   atomic.Int64
	resourceErrors  atomic.Int64
}

func NewHealthStatus(pushEnabled bool) *HealthStatus {
	return &HealthStatus{pushEnabled: pushEnabled}
}

func (h *HealthStatus) SetStreamConnected(ok bool) {
	h.streamConnected.Store(ok)
}

func (h *HealthStatus) MarkPush(ts time.Time) {
	h.lastPushAt.Store(ts.UnixNano())
}

func (h *HealthStatus) ObserveResourceError(string, string) {
	h.resourceErrors.Add(1)
}

func (h *HealthStatus) ObserveCycle(stats collector.CycleStats) {
	h.devices.Store(int64(stats.Devices))
	h.failedDevices.Store(int64(stats.FailedDevices))
	h.lastCycleAt.Store(stats.FinishedAt.UnixNano())
}

// Snapshot reports "down" when every device failed the last cycle and
// "degraded" when some did or the push stream is disconnected.
func (h *HealthStatus) Snapshot() map[string]any {
	devices := h.devices.Load()
	failed := h.failedDevices.Load()

	status := statusOK
	switch {
	case devices > 0 && failed == devices:
		status = statusDown
	case failed > 0:
		status = statusDegraded
	case h.pushEnabled && h.lastPushAt.Load() > 0 && !h.streamConnected.Load():
		status = statusDegraded
	}

	out := map[string]any{
		"status":          status,
		"devices":         devices,
		"failed_devices":  failed,
		"resource_errors": h.resourceErrors.Load(),
	}
	if h.pushEnabled {
		out["stream_connected"] = h.streamConnected.Load()
	}
	if v := h.lastCycleAt.Load(); v > 0 {
		out["last_cycle_at"] = time.Unix(0, v).UTC()
	}
	if v := h.lastPushAt.Load(); v > 0 {
		out["last_push_at"] = time.Unix(0, v).UTC()
	}
	return out
}
