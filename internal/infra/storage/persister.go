package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/staryears/sleepplus/internal/events"
)

// writeTimeout bounds a single audit write.
const writeTimeout = 5 * time.Second

// EventPersister adapts an EventRepository to events.EventPersister.
type EventPersister struct {
	repo EventRepository
}

var _ events.EventPersister = (*EventPersister)(nil)

// NewEventPersister wraps repo.
func NewEventPersister(repo EventRepository) *EventPersister {
	return &EventPersister{repo: repo}
}

// Append translates an engine event and stores it.
func (p *EventPersister) Append(event events.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	payload, err := toPayloadMap(event.Payload)
	if err != nil {
		return err
	}
	return p.repo.Append(ctx, AuditEvent{
		ID:        event.ID,
		Timestamp: event.Timestamp,
		EventType: string(event.Type),
		ActorID:   event.ActorID,
		WorldID:   event.WorldID,
		Payload:   payload,
	})
}

// toPayloadMap flattens a typed payload into the generic JSON shape the table stores.
func toPayloadMap(payload interface{}) (map[string]interface{}, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not an object; keep the value under a single key.
		var v interface{}
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return map[string]interface{}{"value": v}, nil
	}
	return m, nil
}
