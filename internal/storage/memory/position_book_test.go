package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/storage"
)

func TestPositionBook(t *testing.T) {
	book := NewPositionBook()
	ctx := context.Background()
	at := time.Unix(1_700_000_000, 0)

	require.NoError(t, book.Open(domain.Position{TokenID: "b", EntryPrice: 1, OpenedAt: at.Add(time.Second)}))
	require.NoError(t, book.Open(domain.Position{TokenID: "a", EntryPrice: 2, OpenedAt: at}))
	assert.ErrorIs(t, book.Open(domain.Position{TokenID: "c"}), storage.ErrInvalidInput)

	open, err := book.OpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "a", open[0].TokenID)

	require.NoError(t, book.Close("a"))
	assert.ErrorIs(t, book.Close("a"), storage.ErrNotFound)

	open, err = book.OpenPositions(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}
