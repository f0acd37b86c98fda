package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// DefaultLimit caps queries that pass a non-positive limit.
const DefaultLimit = 100

// SQLiteEventRepository implements EventRepository for SQLite.
type SQLiteEventRepository struct {
	db *sql.DB
}

var _ EventRepository = (*SQLiteEventRepository)(nil)

func NewSQLiteEventRepository(db *sql.DB) *SQLiteEventRepository {
	return &SQLiteEventRepository{db: db}
}

func (r *SQLiteEventRepository) Append(ctx context.Context, event AuditEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	query := `
		INSERT INTO events (id, timestamp, event_type, actor_id, world_id, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		event.ID, event.Timestamp.UTC(), event.EventType, event.ActorID, event.WorldID, string(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (r *SQLiteEventRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var e AuditEvent
		var payloadStr string
		err := rows.Scan(&e.ID, &e.Timestamp, &e.EventType, &e.ActorID, &e.WorldID, &payloadStr)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payloadStr), &e.Payload); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

const selectColumns = `SELECT id, timestamp, event_type, actor_id, world_id, payload FROM events`

func (r *SQLiteEventRepository) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	query := selectColumns + ` ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	return r.getMany(ctx, query, normalizeLimit(limit))
}

func (r *SQLiteEventRepository) ByEventType(ctx context.Context, eventType string, limit int) ([]AuditEvent, error) {
	query := selectColumns + ` WHERE event_type = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	return r.getMany(ctx, query, eventType, normalizeLimit(limit))
}

func (r *SQLiteEventRepository) ByWorld(ctx context.Context, worldID string, limit int) ([]AuditEvent, error) {
	query := selectColumns + ` WHERE world_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	return r.getMany(ctx, query, worldID, normalizeLimit(limit))
}

func (r *SQLiteEventRepository) ByWorldAndType(ctx context.Context, worldID, eventType string, limit int) ([]AuditEvent, error) {
	query := selectColumns + ` WHERE world_id = ? AND event_type = ? ORDER BY timestamp DESC, rowid DESC LIMIT ?`
	return r.getMany(ctx, query, worldID, eventType, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
