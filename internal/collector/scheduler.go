package collector

import (
	"context"
	"log/slog"
	"time"

	"shelly-exporter/internal/model"
	"shelly-exporter/internal/stream"
)

// Scheduler pushes a fleet snapshot to a sink on a fixed interval,
// independent of scrapes.
type Scheduler struct {
	logger       *slog.Logger
	fleet        *Fleet
	sink         stream.Sink
	agentID      string
	interval     time.Duration
	errorBackoff time.Duration
	now          func() time.Time
}

func NewScheduler(
	logger *slog.Logger,
	fleet *Fleet,
	sink stream.Sink,
	agentID string,
	interval, errorBackoff time.Duration,
) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if errorBackoff <= 0 {
		errorBackoff = time.Second
	}
	return &Scheduler{
		logger:       logger,
		fleet:        fleet,
		sink:         sink,
		agentID:      agentID,
		interval:     interval,
		errorBackoff: errorBackoff,
		now:          time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	if err := s.collectAndSend(ctx); err != nil {
		s.logger.Warn("initial snapshot push failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.collectAndSend(ctx); err != nil {
				s.logger.Error("snapshot collect/send failed", "error", err)
				s.sleepWithContext(ctx, s.errorBackoff)
			}
		}
	}
}

func (s *Scheduler) collectAndSend(ctx context.Context) error {
	families := s.fleet.Collect(ctx)
	if ctx.Err() != nil {
		return nil
	}
	snap := model.NewSnapshot(s.agentID, s.now(), families)
	return s.sink.SendSnapshot(ctx, snap)
}

func (s *Scheduler) sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
