package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

func newEvent(id, token string, at time.Time) *domain.DecisionEvent {
	return &domain.DecisionEvent{
		ID:            id,
		Type:          domain.EventTradeRejected,
		TokenID:       token,
		CorrelationID: "sweep-1",
		OccurredAt:    at,
		Payload:       map[string]any{"reasons": []any{"liquidity"}, "score": 1.5},
	}
}

func TestDecisionEventStore(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionEventStore(pool)
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("insert and get", func(t *testing.T) {
		e := newEvent("evt-1", "tokenA", base)
		require.NoError(t, store.Insert(ctx, e))

		got, err := store.GetByID(ctx, "evt-1")
		require.NoError(t, err)
		assert.Equal(t, e.Type, got.Type)
		assert.Equal(t, e.TokenID, got.TokenID)
		assert.Equal(t, e.CorrelationID, got.CorrelationID)
		assert.True(t, e.OccurredAt.Equal(got.OccurredAt))
		assert.Equal(t, 1.5, got.Payload["score"])
		assert.Equal(t, []any{"liquidity"}, got.Payload["reasons"])
	})

	t.Run("duplicate", func(t *testing.T) {
		err := store.Insert(ctx, newEvent("evt-1", "tokenA", base))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := store.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.ErrorIs(t, store.Insert(ctx, &domain.DecisionEvent{}), storage.ErrInvalidInput)
		assert.ErrorIs(t, store.Insert(ctx, nil), storage.ErrInvalidInput)
	})

	t.Run("by token newest first", func(t *testing.T) {
		require.NoError(t, store.Insert(ctx, newEvent("evt-2", "tokenA", base.Add(time.Minute))))
		require.NoError(t, store.Insert(ctx, newEvent("evt-3", "tokenB", base.Add(2*time.Minute))))

		events, err := store.GetByToken(ctx, "tokenA", 0)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "evt-2", events[0].ID)
		assert.Equal(t, "evt-1", events[1].ID)

		limited, err := store.GetByToken(ctx, "tokenA", 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, "evt-2", limited[0].ID)
	})

	t.Run("by time range inclusive", func(t *testing.T) {
		events, err := store.GetByTimeRange(ctx, base.Add(time.Minute), base.Add(2*time.Minute))
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "evt-2", events[0].ID)
		assert.Equal(t, "evt-3", events[1].ID)
	})

	t.Run("nil payload", func(t *testing.T) {
		e := newEvent("evt-4", "tokenC", base)
		e.Payload = nil
		require.NoError(t, store.Insert(ctx, e))

		got, err := store.GetByID(ctx, "evt-4")
		require.NoError(t, err)
		assert.Empty(t, got.Payload)
	})
}
