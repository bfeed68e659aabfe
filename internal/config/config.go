package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shelly-exporter/internal/model"
)

type StreamMode string

const (
	StreamModeNone      StreamMode = "none"
	StreamModeGRPC      StreamMode = "grpc"
	StreamModeWebSocket StreamMode = "websocket"
	HardcodedVersion    string     = "V0.3"
)

const (
	defaultPort                 = "9924"
	defaultSnapshotStreamMethod = "/shelly.metrics.v1.MetricsService/StreamFleetSnapshots"
)

type Config struct {
	AgentID               string
	Hostname              string
	ListenAddr            string
	Endpoints             []model.Endpoint
	FetchTimeout          time.Duration
	ScrapeTimeout         time.Duration
	MaxConcurrency        int
	ProbeListenAddr       string
	HealthInterval        time.Duration
	ShutdownTimeout       time.Duration
	StreamMode            StreamMode
	PushInterval          time.Duration
	BackendGRPCAddr       string
	BackendWSURL          string
	BackendToken          string
	GRPCSnapshotMethod    string
	AgentVersion          string
	TLSEnabled            bool
	TLSSkipVerify         bool
	TLSCAPath             string
	TLSCertPath           string
	TLSKeyPath            string
	LogJSON               bool
	LogLevel              string
	WebSocketWriteTimeout time.Duration
	WebSocketPingInterval time.Duration
	CollectorErrorBackoff time.Duration
	ConfigPath            string
}

// fileConfig is the optional YAML overlay read from SHELLY_CONFIG.
type fileConfig struct {
	Listen         string   `yaml:"listen"`
	Endpoints      []string `yaml:"endpoints"`
	FetchTimeout   string   `yaml:"fetch_timeout"`
	ScrapeTimeout  string   `yaml:"scrape_timeout"`
	MaxConcurrency int      `yaml:"max_concurrency"`
	LogLevel       string   `yaml:"log_level"`
	LogJSON        *bool    `yaml:"log_json"`
}

// Load reads configuration with priority: defaults < YAML file < env vars.
func Load() (Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	file, err := loadFile(env("SHELLY_CONFIG", ""))
	if err != nil {
		return Config{}, err
	}

	listen := ":" + defaultPort
	if file.Listen != "" {
		listen = file.Listen
	}
	if port := env("PORT", ""); port != "" {
		listen = ":" + port
	}

	rawEndpoints := file.Endpoints
	if v := env("SHELLY_ENDPOINTS", ""); v != "" {
		rawEndpoints = SplitEndpoints(v)
	}
	endpoints, err := ParseEndpoints(rawEndpoints)
	if err != nil {
		return Config{}, err
	}

	logJSON := false
	if file.LogJSON != nil {
		logJSON = *file.LogJSON
	}

	cfg := Config{
		AgentID:               env("SHELLY_AGENT_ID", hostname),
		Hostname:              hostname,
		ListenAddr:            env("SHELLY_LISTEN_ADDR", listen),
		Endpoints:             endpoints,
		FetchTimeout:          envDuration("SHELLY_FETCH_TIMEOUT", fileDuration(file.FetchTimeout, 5*time.Second)),
		ScrapeTimeout:         envDuration("SHELLY_SCRAPE_TIMEOUT", fileDuration(file.ScrapeTimeout, 20*time.Second)),
		MaxConcurrency:        envInt("SHELLY_MAX_CONCURRENCY", fileInt(file.MaxConcurrency, 8)),
		ProbeListenAddr:       env("SHELLY_PROBE_ADDR", ""),
		HealthInterval:        envDuration("SHELLY_HEALTH_INTERVAL", 30*time.Second),
		ShutdownTimeout:       envDuration("SHELLY_SHUTDOWN_TIMEOUT", 20*time.Second),
		StreamMode:            StreamMode(strings.ToLower(env("SHELLY_STREAM_MODE", string(StreamModeNone)))),
		PushInterval:          envDuration("SHELLY_PUSH_INTERVAL", 15*time.Second),
		BackendGRPCAddr:       env("SHELLY_BACKEND_GRPC_ADDR", "127.0.0.1:3001"),
		BackendWSURL:          env("SHELLY_BACKEND_WS_URL", "ws://127.0.0.1:3001/ws/metrics"),
		BackendToken:          env("SHELLY_BACKEND_TOKEN", ""),
		GRPCSnapshotMethod:    env("SHELLY_GRPC_SNAPSHOT_METHOD", defaultSnapshotStreamMethod),
		AgentVersion:          HardcodedVersion,
		TLSEnabled:            envBool("SHELLY_TLS_ENABLED", false),
		TLSSkipVerify:         envBool("SHELLY_TLS_SKIP_VERIFY", false),
		TLSCAPath:             env("SHELLY_TLS_CA_PATH", ""),
		TLSCertPath:           env("SHELLY_TLS_CERT_PATH", ""),
		TLSKeyPath:            env("SHELLY_TLS_KEY_PATH", ""),
		LogJSON:               envBool("SHELLY_LOG_JSON", logJSON),
		LogLevel:              strings.ToLower(env("SHELLY_LOG_LEVEL", fileString(file.LogLevel, "info"))),
		WebSocketWriteTimeout: envDuration("SHELLY_WS_WRITE_TIMEOUT", 5*time.Second),
		WebSocketPingInterval: envDuration("SHELLY_WS_PING_INTERVAL", 10*time.Second),
		CollectorErrorBackoff: envDuration("SHELLY_COLLECTOR_ERROR_BACKOFF", 1500*time.Millisecond),
		ConfigPath:            env("SHELLY_CONFIG", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.AgentID) == "" {
		return errors.New("SHELLY_AGENT_ID is required")
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return errors.New("listen address is required")
	}
	if c.FetchTimeout <= 0 {
		return errors.New("SHELLY_FETCH_TIMEOUT must be > 0")
	}
	if c.ScrapeTimeout <= 0 {
		return errors.New("SHELLY_SCRAPE_TIMEOUT must be > 0")
	}
	if c.MaxConcurrency <= 0 {
		return errors.New("SHELLY_MAX_CONCURRENCY must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHELLY_SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.HealthInterval <= 0 {
		return errors.New("SHELLY_HEALTH_INTERVAL must be > 0")
	}
	seen := make(map[string]bool, len(c.Endpoints))
	for _, ep := range c.Endpoints {
		if seen[ep.Host] {
			return fmt.Errorf("duplicate endpoint host %q", ep.Host)
		}
		seen[ep.Host] = true
	}
	switch c.StreamMode {
	case StreamModeNone:
	case StreamModeGRPC:
		if c.BackendGRPCAddr == "" {
			return errors.New("SHELLY_BACKEND_GRPC_ADDR is required for grpc mode")
		}
		if strings.TrimSpace(c.GRPCSnapshotMethod) == "" {
			return errors.New("SHELLY_GRPC_SNAPSHOT_METHOD is required for grpc mode")
		}
	case StreamModeWebSocket:
		if c.BackendWSURL == "" {
			return errors.New("SHELLY_BACKEND_WS_URL is required for websocket mode")
		}
	default:
		return fmt.Errorf("unsupported stream mode %q", c.StreamMode)
	}
	if c.StreamMode != StreamModeNone && c.PushInterval <= 0 {
		return errors.New("SHELLY_PUSH_INTERVAL must be > 0")
	}
	return nil
}

func (c Config) PushEnabled() bool {
	return c.StreamMode != StreamModeNone
}

func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLSEnabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: c.TLSSkipVerify}
	if c.TLSCAPath != "" {
		caBytes, err := os.ReadFile(c.TLSCAPath)
		if err != nil {
			return nil, fmt.Errorf("read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, errors.New("append CA cert failed")
		}
		tlsCfg.RootCAs = pool
	}
	if c.TLSCertPath != "" || c.TLSKeyPath != "" {
		if c.TLSCertPath == "" || c.TLSKeyPath == "" {
			return nil, errors.New("both TLS cert and key are required")
		}
		crt, err := tls.LoadX509KeyPair(c.TLSCertPath, c.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load mTLS cert/key: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{crt}
	}
	return tlsCfg, nil
}

// SplitEndpoints splits a whitespace-separated endpoint list.
func SplitEndpoints(v string) []string {
	return strings.Fields(v)
}

// ParseEndpoints parses raw base URLs in order. An empty list is valid.
func ParseEndpoints(raw []string) ([]model.Endpoint, error) {
	out := make([]model.Endpoint, 0, len(raw))
	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		ep, err := model.ParseEndpoint(r)
		if err != nil {
			return nil, fmt.Errorf("SHELLY_ENDPOINTS: %w", err)
		}
		out = append(out, ep)
	}
	return out, nil
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func fileDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func fileInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

func fileString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
