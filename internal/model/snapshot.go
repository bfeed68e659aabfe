package model

import "time"

// Snapshot is the pushed form of one collection cycle.
type Snapshot struct {
	AgentID       string        `json:"agent_id"`
	TimestampUnix int64         `json:"timestamp_unix"`
	Families      []FamilyFrame `json:"families"`
}

type FamilyFrame struct {
	Name    string     `json:"name"`
	Help    string     `json:"help"`
	Type    FamilyType `json:"type"`
	Samples []Sample   `json:"samples"`
}

func NewSnapshot(agentID string, at time.Time, families []*Family) Snapshot {
	frames := make([]FamilyFrame, 0, len(families))
	for _, f := range families {
		frames = append(frames, FamilyFrame{
			Name:    f.Name,
			Help:    f.Help,
			Type:    f.Type,
			Samples: f.Samples(),
		})
	}
	return Snapshot{AgentID: agentID, TimestampUnix: at.UTC().Unix(), Families: frames}
}

// SampleCount returns the number of samples across all frames.
func (s Snapshot) SampleCount() int {
	n := 0
	for _, f := range s.Families {
		n += len(f.Samples)
	}
	return n
}
