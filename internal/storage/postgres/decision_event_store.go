package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// DecisionEventStore implements storage.DecisionEventStore using PostgreSQL.
type DecisionEventStore struct {
	pool *Pool
}

// NewDecisionEventStore creates a new DecisionEventStore.
func NewDecisionEventStore(pool *Pool) *DecisionEventStore {
	return &DecisionEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionEventStore = (*DecisionEventStore)(nil)

const decisionEventColumns = `event_id, event_type, token_id, correlation_id, occurred_at, payload`

// Insert adds a new event. Returns ErrDuplicateKey if event_id exists.
func (s *DecisionEventStore) Insert(ctx context.Context, e *domain.DecisionEvent) (err error) {
	if e == nil || e.ID == "" {
		return storage.ErrInvalidInput
	}
	defer func(start time.Time) { observe("insert_decision_event", start, err) }(time.Now())

	payload, err := json.Marshal(payloadOrEmpty(e.Payload))
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO decision_events (` + decisionEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.pool.Exec(ctx, query,
		e.ID,
		string(e.Type),
		e.TokenID,
		e.CorrelationID,
		e.OccurredAt.UTC(),
		payload,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert decision event: %w", err)
	}
	return nil
}

// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
func (s *DecisionEventStore) GetByID(ctx context.Context, id string) (*domain.DecisionEvent, error) {
	query := `SELECT ` + decisionEventColumns + ` FROM decision_events WHERE event_id = $1`

	e, err := scanDecisionEvent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get decision event by id: %w", err)
	}
	return e, nil
}

// GetByToken retrieves the newest events for a token, newest first.
func (s *DecisionEventStore) GetByToken(ctx context.Context, tokenID string, limit int) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT ` + decisionEventColumns + `
		FROM decision_events
		WHERE token_id = $1
		ORDER BY occurred_at DESC, event_id ASC
	`
	args := []any{tokenID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get decision events by token: %w", err)
	}
	defer rows.Close()

	return scanDecisionEvents(rows)
}

// GetByTimeRange retrieves events within [start, end] (inclusive).
func (s *DecisionEventStore) GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.DecisionEvent, error) {
	query := `
		SELECT ` + decisionEventColumns + `
		FROM decision_events
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at ASC, event_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get decision events by time range: %w", err)
	}
	defer rows.Close()

	return scanDecisionEvents(rows)
}

func payloadOrEmpty(p map[string]any) map[string]any {
	if p == nil {
		return map[string]any{}
	}
	return p
}

// scanDecisionEvent scans a single row into a DecisionEvent.
func scanDecisionEvent(row pgx.Row) (*domain.DecisionEvent, error) {
	var e domain.DecisionEvent
	var eventType string
	var payload []byte

	if err := row.Scan(&e.ID, &eventType, &e.TokenID, &e.CorrelationID, &e.OccurredAt, &payload); err != nil {
		return nil, err
	}

	e.Type = domain.EventType(eventType)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	return &e, nil
}

// scanDecisionEvents scans multiple rows.
func scanDecisionEvents(rows pgx.Rows) ([]*domain.DecisionEvent, error) {
	var events []*domain.DecisionEvent

	for rows.Next() {
		e, err := scanDecisionEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision event row: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision event rows: %w", err)
	}

	return events, nil
}
