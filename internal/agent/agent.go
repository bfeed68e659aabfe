package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"shelly-exporter/internal/agent/version"
	"shelly-exporter/internal/collector"
	"shelly-exporter/internal/config"
	"shelly-exporter/internal/device"
	"shelly-exporter/internal/exporter"
	"shelly-exporter/internal/model"
	"shelly-exporter/internal/stream"
)

type Agent struct {
	cfg       config.Config
	logger    *slog.Logger
	fleet     *collector.Fleet
	registry  *prometheus.Registry
	server    *exporter.Server
	scheduler *collector.Scheduler
	sink      stream.Sink
	health    *HealthStatus
}

func New(cfg config.Config, logger *slog.Logger) (*Agent, error) {
	var sink stream.Sink
	if cfg.PushEnabled() {
		tlsCfg, err := cfg.TLSConfig()
		if err != nil {
			return nil, fmt.Errorf("tls config: %w", err)
		}
		sink, err = stream.NewSinkFromConfig(cfg, tlsCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("stream sink: %w", err)
		}
	}

	if len(cfg.Endpoints) == 0 {
		logger.Warn("no device endpoints configured, serving empty families")
	}
	client := device.NewClient(nil, cfg.FetchTimeout)
	devices := make([]collector.DeviceCollector, 0, len(cfg.Endpoints))
	for _, ep := range cfg.Endpoints {
		devices = append(devices, device.NewCollector(ep, client, logger))
	}

	health := NewHealthStatus(cfg.PushEnabled())
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	selfMetrics := exporter.NewSelfMetrics(registry)
	fleet := collector.NewFleet(logger, devices, cfg.MaxConcurrency, selfMetrics, health)
	registry.MustRegister(exporter.NewFleetCollector(fleet, cfg.ScrapeTimeout, logger))

	server := exporter.NewServer(cfg.ListenAddr, registry, health.Snapshot, func() any {
		return version.Get(cfg, fleet.Devices())
	}, logger)

	a := &Agent{
		cfg:      cfg,
		logger:   logger,
		fleet:    fleet,
		registry: registry,
		server:   server,
		health:   health,
	}
	if sink != nil {
		wrapped := &healthSink{sink: sink, health: health}
		a.sink = wrapped
		a.scheduler = collector.NewScheduler(logger, fleet, wrapped, cfg.AgentID, cfg.PushInterval, cfg.CollectorErrorBackoff)
	}
	return a, nil
}

func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("starting shelly-exporter",
		"agent_id", a.cfg.AgentID,
		"listen", a.cfg.ListenAddr,
		"devices", len(a.cfg.Endpoints),
		"stream_mode", a.cfg.StreamMode,
	)
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- a.run(runCtx)
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case runErr = <-runErrCh:
		// Startup error, runtime error or parent ctx cancelled.
	case sig := <-sigCh:
		a.logger.Info("shutdown signal received, starting graceful shutdown", "signal", sig.String(), "timeout", a.cfg.ShutdownTimeout)
		cancelRun()

		graceTimer := time.NewTimer(a.cfg.ShutdownTimeout)
		defer graceTimer.Stop()

		select {
		case runErr = <-runErrCh:
		case sig2 := <-sigCh:
			a.logger.Warn("second signal received, forcing immediate shutdown", "signal", sig2.String())
			runErr = context.Canceled
		case <-graceTimer.C:
			a.logger.Warn("graceful shutdown timeout reached, forcing shutdown", "timeout", a.cfg.ShutdownTimeout)
			runErr = context.DeadlineExceeded
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancelShutdown()
	a.shutdown(shutdownCtx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, context.DeadlineExceeded) {
		return runErr
	}
	a.logger.Info("shelly-exporter stopped")
	return nil
}

func BuildLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	hOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, hOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, hOpts))
}

// healthSink records push outcomes on the health status.
type healthSink struct {
	sink   stream.Sink
	health *HealthStatus
}

func (s *healthSink) SendSnapshot(ctx context.Context, snap model.Snapshot) error {
	err := s.sink.SendSnapshot(ctx, snap)
	if err != nil {
		s.health.SetStreamConnected(false)
		return err
	}
	s.health.SetStreamConnected(true)
	if snap.TimestampUnix > 0 {
		s.health.MarkPush(time.Unix(snap.TimestampUnix, 0).UTC())
	}
	return nil
}

func (s *healthSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}
