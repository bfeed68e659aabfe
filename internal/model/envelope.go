package model

type MessageType string

const MessageTypeFleetSnapshot MessageType = "fleet_snapshot"

// Envelope is transport-agnostic framing for stream payloads.
type Envelope struct {
	Type          MessageType `json:"type"`
	AgentID       string      `json:"agent_id"`
	TimestampUnix int64       `json:"timestamp_unix"`
	Payload       any         `json:"payload"`
}
