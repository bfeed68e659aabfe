package device

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"shelly-exporter/internal/model"
)

const (
	meterDoc  = `{"power":12.5,"overpower":0,"is_valid":true,"timestamp":1700000000,"counters":[1.1,2.2,3.3],"total":4242}`
	relayDoc  = `{"ison":true,"has_timer":false,"timer_started":0,"timer_duration":0,"timer_remaining":0,"overpower":false,"source":"http"}`
	statusDoc = `{
		"wifi_sta":{"connected":true,"ssid":"home"},
		"relays":[{"ison":true,"has_timer":false,"source":"input"}],
		"meters":[{"power":12.5,"is_valid":true,"counters":[1,2,3]}],
		"temperature":41.3,
		"overtemperature":false,
		"tmp":{"tC":41.3,"tF":106.34,"is_valid":true},
		"ram_total":52064,
		"ram_free":39560,
		"uptime":1234
	}`
)

// fakeDevice serves the given bodies by path. A status of 0 means 200.
type fakeDevice struct {
	bodies   map[string]string
	statuses map[string]int
	delay    map[string]time.Duration
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		bodies: map[string]string{
			"/meter/0": meterDoc,
			"/relay/0": relayDoc,
			"/status":  statusDoc,
		},
		statuses: map[string]int{},
		delay:    map[string]time.Duration{},
	}
}

func (f *fakeDevice) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if d := f.delay[r.URL.Path]; d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	body, ok := f.bodies[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if code := f.statuses[r.URL.Path]; code != 0 {
		w.WriteHeader(code)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, body)
}

func startFake(t *testing.T, f *fakeDevice) model.Endpoint {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	ep, err := model.ParseEndpoint(srv.URL + "/")
	require.NoError(t, err)
	return ep
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
