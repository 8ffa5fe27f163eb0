package storage

import (
	"context"
	"time"

	"solana-trade-sentinel/internal/domain"
)

// DecisionEventStore provides access to the decision_events journal.
// The journal is append-only; the sentinel writes it and never reads it back
// for decisions.
type DecisionEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if the event id exists.
	Insert(ctx context.Context, e *domain.DecisionEvent) error

	// GetByID retrieves an event by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.DecisionEvent, error)

	// GetByToken retrieves the newest events for a token, newest first.
	// limit <= 0 returns all.
	GetByToken(ctx context.Context, tokenID string, limit int) ([]*domain.DecisionEvent, error)

	// GetByTimeRange retrieves events that occurred within [start, end] (inclusive),
	// ordered by occurred_at ASC.
	GetByTimeRange(ctx context.Context, start, end time.Time) ([]*domain.DecisionEvent, error)
}

// PositionStore lists open positions owned by the execution collaborator.
type PositionStore interface {
	// OpenPositions returns all currently open positions ordered by opened_at ASC.
	OpenPositions(ctx context.Context) ([]domain.Position, error)
}
