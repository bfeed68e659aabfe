package agent

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelly-exporter/internal/collector"
	"shelly-exporter/internal/config"
	"shelly-exporter/internal/model"
)

const (
	meterDoc  = `{"power":12.5,"overpower":0,"is_valid":true}`
	relayDoc  = `{"ison":true,"overpower":false,"source":"http"}`
	statusDoc = `{"relays":[{"ison":true}],"meters":[{"power":12.5}],"temperature":41.3,"overtemperature":false,"tmp":{"tC":41.3,"tF":106.34},"ram_total":52064,"ram_free":39560}`
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startDevice(t *testing.T) model.Endpoint {
	t.Helper()
	bodies := map[string]string{"/meter/0": meterDoc, "/relay/0": relayDoc, "/status": statusDoc}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := bodies[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	ep, err := model.ParseEndpoint(srv.URL)
	require.NoError(t, err)
	return ep
}

func testConfig(endpoints ...model.Endpoint) config.Config {
	return config.Config{
		AgentID:               "agent-1",
		ListenAddr:            "127.0.0.1:0",
		Endpoints:             endpoints,
		FetchTimeout:          time.Second,
		ScrapeTimeout:         2 * time.Second,
		MaxConcurrency:        4,
		HealthInterval:        time.Hour,
		ShutdownTimeout:       time.Second,
		StreamMode:            config.StreamModeNone,
		AgentVersion:          config.HardcodedVersion,
		CollectorErrorBackoff: time.Millisecond,
	}
}

func scrape(t *testing.T, h http.Handler, path string) string {
	t.Helper()
	ts := httptest.NewServer(h)
	defer ts.Close()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestAgentServesFleetMetrics(t *testing.T) {
	ep := startDevice(t)
	a, err := New(testConfig(ep), discardLogger())
	require.NoError(t, err)
	assert.Nil(t, a.scheduler)

	body := scrape(t, a.server.Handler(), "/metrics")
	host := `host="` + ep.Host + `"`
	assert.Contains(t, body, `meter_0_power{`+host+`} 12.5`)
	assert.Contains(t, body, `relay_0_ison{`+host+`} 1`)
	assert.Contains(t, body, `status_relays_0_ison{`+host+`} 1`)
	assert.Contains(t, body, `status_meter_power{`+host+`,index="0"} 12.5`)
	assert.Contains(t, body, `status_tC{`+host+`} 41.3`)
	assert.Contains(t, body, "go_goroutines")

	// Self metrics are gathered alongside the cycle, so they trail by up to one scrape.
	body = scrape(t, a.server.Handler(), "/metrics")
	assert.Regexp(t, `shelly_exporter_cycle_duration_seconds_count [12]\n`, body)
	assert.Contains(t, body, `shelly_exporter_devices{state="ok"} 1`)

	health := scrape(t, a.server.Handler(), "/healthz")
	assert.Contains(t, health, `"status": "ok"`)

	version := scrape(t, a.server.Handler(), "/version")
	assert.Contains(t, version, `"agent_version": "V0.3"`)
	assert.Contains(t, version, `"devices": 1`)
}

func TestAgentUnreachableDeviceStillServes(t *testing.T) {
	ep, err := model.ParseEndpoint("http://127.0.0.1:1")
	require.NoError(t, err)
	a, err := New(testConfig(ep), discardLogger())
	require.NoError(t, err)

	body := scrape(t, a.server.Handler(), "/metrics")
	assert.NotContains(t, body, "meter_0_power")

	body = scrape(t, a.server.Handler(), "/metrics")
	assert.NotContains(t, body, "meter_0_power")
	assert.Contains(t, body, `shelly_exporter_devices{state="failed"} 1`)
	assert.Regexp(t, `shelly_exporter_fetch_errors_total\{host="127\.0\.0\.1:1",resource="status"\} [12]\n`, body)

	health := scrape(t, a.server.Handler(), "/healthz")
	assert.Contains(t, health, `"status": "down"`)
}

func TestAgentBuildsSchedulerWhenPushEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.StreamMode = config.StreamModeWebSocket
	cfg.BackendWSURL = "ws://127.0.0.1:1/ws"
	cfg.PushInterval = time.Second

	a, err := New(cfg, discardLogger())
	require.NoError(t, err)
	assert.NotNil(t, a.scheduler)
	assert.NotNil(t, a.sink)
}

func TestAgentRunStopsOnContextCancel(t *testing.T) {
	a, err := New(testConfig(), discardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestBuildLogger(t *testing.T) {
	logger := BuildLogger(config.Config{LogLevel: "warn"})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelWarn))

	logger = BuildLogger(config.Config{LogLevel: "debug", LogJSON: true})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
	_, isJSON := logger.Handler().(*slog.JSONHandler)
	assert.True(t, isJSON)
}

func TestHealthStatusSnapshot(t *testing.T) {
	h := NewHealthStatus(false)
	assert.Equal(t, statusOK, h.Snapshot()["status"])

	h.ObserveCycle(collector.CycleStats{Devices: 3, FailedDevices: 1, FinishedAt: time.Now()})
	h.ObserveResourceError("10.0.0.5", "meter")
	snap := h.Snapshot()
	assert.Equal(t, statusDegraded, snap["status"])
	assert.Equal(t, int64(1), snap["resource_errors"])
	assert.Contains(t, snap, "last_cycle_at")
	assert.NotContains(t, snap, "stream_connected")

	h.ObserveCycle(collector.CycleStats{Devices: 3, FailedDevices: 3, FinishedAt: time.Now()})
	assert.Equal(t, statusDown, h.Snapshot()["status"])

	h.ObserveCycle(collector.CycleStats{Devices: 0, FinishedAt: time.Now()})
	assert.Equal(t, statusOK, h.Snapshot()["status"])
}

type failingSink struct{ err error }

func (s failingSink) SendSnapshot(context.Context, model.Snapshot) error { return s.err }
func (s failingSink) Close(context.Context) error                       { return nil }

func TestHealthSinkTracksPushOutcome(t *testing.T) {
	h := NewHealthStatus(true)
	snap := model.Snapshot{AgentID: "agent-1", TimestampUnix: 1700000000}

	ok := &healthSink{sink: failingSink{}, health: h}
	require.NoError(t, ok.SendSnapshot(context.Background(), snap))
	out := h.Snapshot()
	assert.Equal(t, true, out["stream_connected"])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), out["last_push_at"])

	bad := &healthSink{sink: failingSink{err: errors.New("backend down")}, health: h}
	require.Error(t, bad.SendSnapshot(context.Background(), snap))
	out = h.Snapshot()
	assert.Equal(t, false, out["stream_connected"])
	assert.Equal(t, statusDegraded, out["status"])
}

func TestServeProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serveProbe(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	reply, err := io.ReadAll(conn)
	require.NoError(t, err)
	_ = conn.Close()
	assert.Equal(t, probeReply, string(reply))

	cancel()
	assert.NoError(t, <-done)
}
