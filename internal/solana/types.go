package solana

import "time"

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// SOL returns the account balance in SOL.
func (a *AccountInfo) SOL() float64 {
	if a == nil {
		return 0
	}
	return LamportsToSOL(int64(a.Lamports))
}

// MintInfo is the decoded state of an SPL token mint.
// Empty authority strings mean the authority is disabled.
type MintInfo struct {
	MintAuthority   string
	FreezeAuthority string
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	Owner           string // token program
}

// RecentTransaction is a transaction summary with SOL balance deltas.
type RecentTransaction struct {
	Signature     string
	Slot          int64
	BlockTime     time.Time // zero if unknown
	BalanceDeltas map[string]int64
}

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// LamportsToSOL converts lamports to SOL.
func LamportsToSOL(lamports int64) float64 {
	return float64(lamports) / LamportsPerSOL
}
