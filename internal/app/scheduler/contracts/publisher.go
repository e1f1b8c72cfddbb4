package contracts

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is the document handed to the downstream bus for one event.
// Payload and metadata are forwarded verbatim; the engine never interprets
// them. Delivery is at-least-once, so downstream consumers dedupe by EventID.
type Envelope struct {
	EventID     string            `json:"event_id"`
	Kind        string            `json:"kind"`
	Payload     json.RawMessage   `json:"payload,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ScheduledAt time.Time         `json:"scheduled_at"`
}

// Publisher is the capability boundary over the downstream message bus.
// The dispatcher applies a bounded timeout to every call and treats timeout
// and explicit error identically. Publish must be safe to retry.
type Publisher interface {
	Publish(ctx context.Context, env *Envelope) error
	Close() error
}
