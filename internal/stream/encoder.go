package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"shelly-exporter/internal/model"
)

// Sink receives one snapshot per collection cycle.
type Sink interface {
	SendSnapshot(ctx context.Context, snap model.Snapshot) error
	Close(ctx context.Context) error
}

func EncodeEnvelope(e model.Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func NewSnapshotEnvelope(snap model.Snapshot) model.Envelope {
	return model.Envelope{
		Type:          model.MessageTypeFleetSnapshot,
		AgentID:       snap.AgentID,
		TimestampUnix: snap.TimestampUnix,
		Payload:       snap,
	}
}

// closeWithin runs closeFn and gives up waiting once ctx is done. The close
// keeps running in the background in that case.
func closeWithin(ctx context.Context, closeFn func() error) error {
	done := make(chan error, 1)
	go func() { done <- closeFn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("close sink: %w", ctx.Err())
	}
}
