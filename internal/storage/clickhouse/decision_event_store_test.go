package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

func TestDecisionEventStore(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewDecisionEventStore(conn)
	ctx := context.Background()
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	first := &domain.DecisionEvent{
		ID:         "evt-1",
		Type:       domain.EventEmergencyExit,
		TokenID:    "tokenA",
		OccurredAt: base,
		Payload:    map[string]any{"reason": "liquidity pool drained", "severity": "critical"},
	}
	require.NoError(t, store.Insert(ctx, first))
	assert.ErrorIs(t, store.Insert(ctx, first), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, &domain.DecisionEvent{}), storage.ErrInvalidInput)

	got, err := store.GetByID(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, domain.EventEmergencyExit, got.Type)
	assert.Equal(t, "critical", got.Payload["severity"])
	assert.True(t, base.Equal(got.OccurredAt))

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, &domain.DecisionEvent{
		ID: "evt-2", Type: domain.EventTrailingUpdate, TokenID: "tokenA", OccurredAt: base.Add(time.Second),
	}))
	require.NoError(t, store.Insert(ctx, &domain.DecisionEvent{
		ID: "evt-3", Type: domain.EventSignalGenerated, TokenID: "tokenB", OccurredAt: base.Add(time.Minute),
	}))

	byToken, err := store.GetByToken(ctx, "tokenA", 0)
	require.NoError(t, err)
	require.Len(t, byToken, 2)
	assert.Equal(t, "evt-2", byToken[0].ID)

	limited, err := store.GetByToken(ctx, "tokenA", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	inRange, err := store.GetByTimeRange(ctx, base.Add(time.Second), base.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, inRange, 2)
	assert.Equal(t, "evt-2", inRange[0].ID)
	assert.Equal(t, "evt-3", inRange[1].ID)
}
