package eventstore

import (
	"context"
	"time"
)

// Event represents a domain event of a bridged build.
type Event interface {
	// ID returns the unique identifier for this event.
	ID() int64
	// BuildID returns the build identifier this event belongs to.
	BuildID() string
	// Type returns the event type name.
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
	// Payload returns the event data as bytes.
	Payload() []byte
	// Metadata returns optional event metadata.
	Metadata() map[string]string
}

// BaseEvent provides a default implementation of Event.
type BaseEvent struct {
	EventID        int64
	EventBuildID   string
	EventType      string
	EventTimestamp time.Time
	EventPayload   []byte
	EventMetadata  map[string]string
}

func (e *BaseEvent) ID() int64                   { return e.EventID }
func (e *BaseEvent) BuildID() string             { return e.EventBuildID }
func (e *BaseEvent) Type() string                { return e.EventType }
func (e *BaseEvent) Timestamp() time.Time        { return e.EventTimestamp }
func (e *BaseEvent) Payload() []byte             { return e.EventPayload }
func (e *BaseEvent) Metadata() map[string]string { return e.EventMetadata }

// AppendEvent persists ev, keeping its own timestamp.
func AppendEvent(ctx context.Context, s Store, ev Event) error {
	return s.Append(ctx, ev.BuildID(), ev.Type(), ev.Payload(), withTimestamp(ev.Metadata(), ev.Timestamp()))
}

const metaTimestamp = "ts"

func withTimestamp(meta map[string]string, ts time.Time) map[string]string {
	out := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if !ts.IsZero() {
		out[metaTimestamp] = ts.UTC().Format(time.RFC3339Nano)
	}
	return out
}
