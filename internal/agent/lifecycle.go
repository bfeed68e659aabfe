package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

func (a *Agent) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx)
	})
	if a.scheduler != nil {
		g.Go(func() error {
			return a.scheduler.Run(gctx)
		})
	}
	if a.cfg.ProbeListenAddr != "" {
		g.Go(func() error {
			return a.runProbeListener(gctx)
		})
	}
	g.Go(func() error {
		return a.runHealthLoop(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) runHealthLoop(ctx context.Context) error {
	t := time.NewTicker(a.cfg.HealthInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			a.logHealth()
		}
	}
}

func (a *Agent) logHealth() {
	snap := a.health.Snapshot()
	level := slog.LevelDebug
	if snap["status"] != statusOK {
		level = slog.LevelWarn
	}
	a.logger.Log(context.Background(), level, "exporter health", "snapshot", snap)
}

func (a *Agent) shutdown(ctx context.Context) {
	if a.sink != nil {
		if err := a.sink.Close(ctx); err != nil {
			a.logger.Warn("stream sink close failed", "error", err)
		}
	}
	a.health.SetStreamConnected(false)
}
