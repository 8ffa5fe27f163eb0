package memory

import (
	"context"
	"sort"
	"sync"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

// PositionBook is an in-memory storage.PositionStore. The execution
// collaborator (or a test) opens and closes positions on it.
type PositionBook struct {
	mu        sync.RWMutex
	positions map[string]domain.Position // keyed by token id
}

// NewPositionBook creates an empty book.
func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]domain.Position)}
}

// Open records p, replacing any open position for the same token.
func (b *PositionBook) Open(p domain.Position) error {
	if p.TokenID == "" || p.EntryPrice <= 0 {
		return storage.ErrInvalidInput
	}
	b.mu.Lock()
	b.positions[p.TokenID] = p
	b.mu.Unlock()
	return nil
}

// Close removes the token's position. Returns ErrNotFound if none is open.
func (b *PositionBook) Close(tokenID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.positions[tokenID]; !ok {
		return storage.ErrNotFound
	}
	delete(b.positions, tokenID)
	return nil
}

// OpenPositions returns open positions ordered by OpenedAt, then token.
func (b *PositionBook) OpenPositions(_ context.Context) ([]domain.Position, error) {
	b.mu.RLock()
	out := make([]domain.Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].TokenID < out[j].TokenID
	})
	return out, nil
}

// Verify interface compliance at compile time.
var _ storage.PositionStore = (*PositionBook)(nil)
