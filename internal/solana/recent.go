package solana

import (
	"context"
	"fmt"
	"time"
)

// TransactionReader is the subset of RPCClient needed to assemble recent transactions.
type TransactionReader interface {
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// FetchRecentTransactions lists the newest signatures for address and loads
// each transaction to compute balance deltas. Newest first.
// Transactions that cannot be found are skipped.
func FetchRecentTransactions(ctx context.Context, r TransactionReader, address string, limit int) ([]RecentTransaction, error) {
	if limit <= 0 {
		limit = 1
	}

	sigs, err := r.GetSignaturesForAddress(ctx, address, &SignaturesOpts{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("signatures for %s: %w", address, err)
	}

	out := make([]RecentTransaction, 0, len(sigs))
	for _, sig := range sigs {
		tx, err := r.GetTransaction(ctx, sig.Signature)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", sig.Signature, err)
		}
		if tx == nil {
			continue
		}

		rt := RecentTransaction{
			Signature:     sig.Signature,
			Slot:          tx.Slot,
			BalanceDeltas: tx.BalanceDeltas(),
		}
		switch {
		case tx.BlockTime > 0:
			rt.BlockTime = time.Unix(tx.BlockTime, 0)
		case sig.BlockTime != nil:
			rt.BlockTime = time.Unix(*sig.BlockTime, 0)
		}
		out = append(out, rt)
	}
	return out, nil
}
