// Package storage provides the audit ledger of the sleep server.
// It only ever receives events; sleep sessions are never loaded back from it.
package storage

import (
	"context"
	"time"
)

// AuditEvent mirrors events.Event for persistence.
type AuditEvent struct {
	ID        string                 `json:"id" db:"id"`
	Timestamp time.Time              `json:"timestamp" db:"timestamp"`
	EventType string                 `json:"event_type" db:"event_type"`
	ActorID   string                 `json:"actor_id" db:"actor_id"`
	WorldID   string                 `json:"world_id" db:"world_id"`
	Payload   map[string]interface{} `json:"payload" db:"payload"`
}

// EventRepository defines the interface for audit persistence.
type EventRepository interface {
	// Append adds a new event to the ledger.
	Append(ctx context.Context, event AuditEvent) error

	// Recent returns up to limit of the newest events, newest first.
	Recent(ctx context.Context, limit int) ([]AuditEvent, error)

	// ByEventType returns up to limit of the newest events of a type, newest first.
	ByEventType(ctx context.Context, eventType string, limit int) ([]AuditEvent, error)

	// ByWorld returns up to limit of the newest events of a world, newest first.
	ByWorld(ctx context.Context, worldID string, limit int) ([]AuditEvent, error)

	// ByWorldAndType returns up to limit of the newest events of a type in a world, newest first.
	ByWorldAndType(ctx context.Context, worldID, eventType string, limit int) ([]AuditEvent, error)
}
