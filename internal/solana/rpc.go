package solana

import "context"

// RPCClient defines the Solana RPC HTTP interface used by the sentinel.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns nil, nil if the account does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)

	// GetMintInfo reads and decodes an SPL mint account.
	// Returns nil, nil if the account does not exist.
	GetMintInfo(ctx context.Context, mint string) (*MintInfo, error)

	// GetTransaction retrieves a transaction by signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetSignaturesForAddress retrieves signatures for an address with pagination.
	GetSignaturesForAddress(ctx context.Context, address string, opts *SignaturesOpts) ([]SignatureInfo, error)

	// GetRecentTransactions returns the newest transactions touching address,
	// newest first, with per-account SOL balance deltas.
	GetRecentTransactions(ctx context.Context, address string, limit int) ([]RecentTransaction, error)
}

// Transaction represents a Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err          interface{}
	LogMessages  []string
	PreBalances  []int64 // lamports, indexed like Message.AccountKeys
	PostBalances []int64
}

// TransactionMessage contains parsed transaction message.
type TransactionMessage struct {
	AccountKeys []string
}

// BalanceDeltas returns post-pre lamport changes keyed by account address.
// Accounts without a change are omitted.
func (tx *Transaction) BalanceDeltas() map[string]int64 {
	deltas := make(map[string]int64)
	if tx == nil || tx.Meta == nil || tx.Message == nil {
		return deltas
	}
	keys := tx.Message.AccountKeys
	pre, post := tx.Meta.PreBalances, tx.Meta.PostBalances
	for i, key := range keys {
		if i >= len(pre) || i >= len(post) {
			break
		}
		if d := post[i] - pre[i]; d != 0 {
			deltas[key] += d
		}
	}
	return deltas
}
