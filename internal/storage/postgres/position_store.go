package postgres

import (
	"context"
	"fmt"
	"time"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// PositionStore reads open_positions. The table is written by the
// execution service; this store never modifies it.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// OpenPositions returns rows with no closed_at, oldest first.
func (s *PositionStore) OpenPositions(ctx context.Context) (_ []domain.Position, err error) {
	defer func(start time.Time) { observe("open_positions", start, err) }(time.Now())

	query := `
		SELECT token_id, pool_address, creator_address, entry_price, amount, opened_at
		FROM open_positions
		WHERE closed_at IS NULL
		ORDER BY opened_at ASC, token_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query open positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.TokenID, &p.PoolAddress, &p.CreatorAddress, &p.EntryPrice, &p.Amount, &p.OpenedAt); err != nil {
			return nil, fmt.Errorf("scan open position row: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate open position rows: %w", err)
	}

	return positions, nil
}
