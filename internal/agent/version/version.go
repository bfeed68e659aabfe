package version

import (
	"runtime"
	"time"

	"shelly-exporter/internal/config"
)

type Info struct {
	AgentID         string `json:"agent_id"`
	AgentVersion    string `json:"agent_version"`
	GoVersion       string `json:"go_version"`
	StreamMode      string `json:"stream_mode"`
	Devices         int    `json:"devices"`
	ProbeListenAddr string `json:"probe_listen_addr,omitempty"`
	CheckedAtUnix   int64  `json:"checked_at_unix"`
}

func Get(cfg config.Config, devices int) *Info {
	return &Info{
		AgentID:         cfg.AgentID,
		AgentVersion:    cfg.AgentVersion,
		GoVersion:       runtime.Version(),
		StreamMode:      string(cfg.StreamMode),
		Devices:         devices,
		ProbeListenAddr: cfg.ProbeListenAddr,
		CheckedAtUnix:   time.Now().UTC().Unix(),
	}
}
