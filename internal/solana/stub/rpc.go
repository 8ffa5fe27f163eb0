// Package stub provides an in-memory solana.RPCClient for tests and dry runs.
package stub

import (
	"context"
	"errors"
	"sync"

	"solana-trade-sentinel/internal/solana"
)

// ErrNotFound is returned when a transaction is not found.
var ErrNotFound = errors.New("not found")

// RPCClient implements solana.RPCClient for testing.
// Fields may be populated directly before use; methods are safe for concurrent calls.
type RPCClient struct {
	mu           sync.RWMutex
	Accounts     map[string]*solana.AccountInfo
	Transactions map[string]*solana.Transaction
	Signatures   map[string][]solana.SignatureInfo

	// Errors forces the named method ("getAccountInfo", "getTransaction",
	// "getSignaturesForAddress") to fail for the given address or signature.
	// The "*" key fails every call.
	Errors map[string]map[string]error

	calls map[string]int
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts:     make(map[string]*solana.AccountInfo),
		Transactions: make(map[string]*solana.Transaction),
		Signatures:   make(map[string][]solana.SignatureInfo),
		Errors:       make(map[string]map[string]error),
		calls:        make(map[string]int),
	}
}

func (c *RPCClient) enter(method, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	if errs, ok := c.Errors[method]; ok {
		if err, ok := errs[key]; ok {
			return err
		}
		if err, ok := errs["*"]; ok {
			return err
		}
	}
	return nil
}

// Calls returns how many times method was invoked.
func (c *RPCClient) Calls(method string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.calls[method]
}

// GetAccountInfo returns a copy of the stored account, or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, address string) (*solana.AccountInfo, error) {
	if err := c.enter("getAccountInfo", address); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.Accounts[address]
	if !ok || info == nil {
		return nil, nil
	}
	cp := *info
	return &cp, nil
}

// GetMintInfo decodes a stored mint account.
func (c *RPCClient) GetMintInfo(ctx context.Context, mint string) (*solana.MintInfo, error) {
	info, err := c.GetAccountInfo(ctx, mint)
	if err != nil || info == nil {
		return nil, err
	}
	return solana.MintFromAccount(info)
}

// GetTransaction retrieves a transaction by signature from the stub store.
func (c *RPCClient) GetTransaction(_ context.Context, signature string) (*solana.Transaction, error) {
	if err := c.enter("getTransaction", signature); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	tx, ok := c.Transactions[signature]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

// GetSignaturesForAddress retrieves signatures for an address from the stub store.
func (c *RPCClient) GetSignaturesForAddress(_ context.Context, address string, opts *solana.SignaturesOpts) ([]solana.SignatureInfo, error) {
	if err := c.enter("getSignaturesForAddress", address); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	sigs, ok := c.Signatures[address]
	if !ok {
		return nil, nil
	}

	if opts != nil && opts.Limit > 0 && opts.Limit < len(sigs) {
		return sigs[:opts.Limit], nil
	}
	return sigs, nil
}

// GetRecentTransactions assembles recent transactions from the stub store.
func (c *RPCClient) GetRecentTransactions(ctx context.Context, address string, limit int) ([]solana.RecentTransaction, error) {
	return solana.FetchRecentTransactions(ctx, c, address, limit)
}

// SetAccount stores an account.
func (c *RPCClient) SetAccount(address string, info *solana.AccountInfo) {
	c.mu.Lock()
	c.Accounts[address] = info
	c.mu.Unlock()
}

// SetLamports stores a system-owned account with the given balance.
func (c *RPCClient) SetLamports(address string, lamports uint64) {
	c.SetAccount(address, &solana.AccountInfo{
		Lamports: lamports,
		Owner:    "11111111111111111111111111111111",
	})
}

// SetMint stores an SPL mint account.
func (c *RPCClient) SetMint(address string, mint solana.MintInfo) error {
	data, err := solana.EncodeMint(mint)
	if err != nil {
		return err
	}
	c.SetAccount(address, &solana.AccountInfo{
		Lamports: 1_461_600,
		Owner:    solana.TokenProgramID,
		Data:     data,
	})
	return nil
}

// AddTransaction adds a transaction and prepends its signature to every
// account it touches, so it becomes the most recent for those addresses.
func (c *RPCClient) AddTransaction(tx *solana.Transaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Transactions[tx.Signature] = tx

	if tx.Message == nil {
		return
	}
	bt := tx.BlockTime
	info := solana.SignatureInfo{Signature: tx.Signature, Slot: tx.Slot, BlockTime: &bt}
	for _, key := range tx.Message.AccountKeys {
		c.Signatures[key] = append([]solana.SignatureInfo{info}, c.Signatures[key]...)
	}
}

// AddSignatures adds signatures for an address to the stub store.
func (c *RPCClient) AddSignatures(address string, sigs []solana.SignatureInfo) {
	c.mu.Lock()
	c.Signatures[address] = sigs
	c.mu.Unlock()
}

// FailWith makes method fail for key ("*" for every key).
func (c *RPCClient) FailWith(method, key string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Errors[method] == nil {
		c.Errors[method] = make(map[string]error)
	}
	c.Errors[method][key] = err
}
