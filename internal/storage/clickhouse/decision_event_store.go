package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// DecisionEventStore implements storage.DecisionEventStore using ClickHouse.
// MergeTree does not enforce uniqueness, so Insert checks for the id first.
type DecisionEventStore struct {
	conn *Conn
}

// NewDecisionEventStore creates a new DecisionEventStore.
func NewDecisionEventStore(conn *Conn) *DecisionEventStore {
	return &DecisionEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.DecisionEventStore = (*DecisionEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *DecisionEventStore) Insert(ctx context.Context, e *domain.DecisionEvent) (err error) {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_decision_event", start, err) }(time.Now())

	exists, err := s.exists(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	payload := []byte("{}")
	if e.Payload != nil {
		payload, err = json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO decision_events (
			event_id, event_type, token_id, correlation_id, occurred_at, payload
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(e.ID, string(e.Type), e.TokenID, e.CorrelationID, e.OccurredAt.UTC(), string(payload))
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *DecisionEventStore) GetByID(ctx context.Context, id string) (*domain.DecisionEvent, error) {
	query := `
		SELECT event_id, event_type, token_id, correlation_id, occurred_at, payload
		FROM decision_events FINAL
		WHERE event_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query by id: %w", err)
	}
	defer rows.Close()

	events, err := scanDecisionEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// GetByToken retrieves the newest events for a token, newest first.
func (s *DecisionEventStore) GetByToken(ctx context.Context, tokenID string, limit int) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT event_id, event_type, token_id, correlation_id, occurred_at, payload
		FROM decision_events FINAL
		WHERE token_id = ?
		ORDER BY occurred_at DESC, event_id ASC
	`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query by token: %w", err)
	}
	defer rows.Close()

	return scanDecisionEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *DecisionEventStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT event_id, event_type, token_id, correlation_id, occurred_at, payload
		FROM decision_events FINAL
		WHERE occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at ASC, event_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanDecisionEvents(rows)
}

func (s *DecisionEventStore) exists(ctx context.Context, id string) (bool, error) {
	var count uint64
	row := s.conn.QueryRow(ctx, `SELECT count() FROM decision_events WHERE event_id = ?`, id)
	if err := row.Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanDecisionEvents(rows driver.Rows) ([]*domain.DecisionEvent, error) {
	var events []*domain.DecisionEvent

	for rows.Next() {
		var (
			e         domain.DecisionEvent
			eventType string
			payload   string
		)
		if err := rows.Scan(&e.ID, &eventType, &e.TokenID, &e.CorrelationID, &e.OccurredAt, &payload); err != nil {
			return nil, fmt.Errorf("scan decision event row: %w", err)
		}
		e.Type = domain.EventType(eventType)
		if payload != "" {
			if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
				return nil, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return events, nil
}
