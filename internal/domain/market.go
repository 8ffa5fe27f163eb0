package domain

import "time"

// LamportsPerSOL is the number of lamports in one SOL.
const LamportsPerSOL = 1_000_000_000

// PricePoint is a single recorded price sample. Immutable once recorded.
type PricePoint struct {
	Price     float64
	Timestamp time.Time
}

// MarketSample is one observation of a token's market state.
type MarketSample struct {
	Price     float64
	Liquidity float64 // SOL
	Volume    float64
	Timestamp time.Time
}

// SmartWalletSignal describes a trade by a tracked "smart" wallet.
type SmartWalletSignal struct {
	Wallet    string
	Action    string // "buy" | "sell"
	AmountSol float64
	SeenAt    time.Time
}

// Smart wallet actions.
const (
	SmartWalletBuy  = "buy"
	SmartWalletSell = "sell"
)

// TokenMeta carries per-token metadata that strategies may consult.
// The engine never interprets it.
type TokenMeta struct {
	Symbol        string
	PoolAddress   string
	PoolCreatedAt time.Time // zero if unknown
	SmartWallet   *SmartWalletSignal
	Extra         map[string]any
}

// StrategyContext is a per-evaluation snapshot handed to every strategy.
// Built fresh for each evaluation; strategies must not mutate it.
type StrategyContext struct {
	TokenID          string
	PriceHistory     []float64
	LiquidityHistory []float64
	VolumeHistory    []float64
	CurrentPrice     float64
	CurrentLiquidity float64
	CurrentVolume    float64
	TokenMeta        TokenMeta
	Now              time.Time
}

// StrategyResult is one strategy's opinion about a token.
type StrategyResult struct {
	Strategy   string   `json:"strategy"`
	ShouldBuy  bool     `json:"shouldBuy"`
	ShouldSell bool     `json:"shouldSell"`
	Reason     string   `json:"reason"`
	Score      *float64 `json:"score,omitempty"`
}

// IsHold reports whether the result carries neither a buy nor a sell.
func (r StrategyResult) IsHold() bool {
	return !r.ShouldBuy && !r.ShouldSell
}

// Side returns "buy", "sell" or "hold".
func (r StrategyResult) Side() string {
	switch {
	case r.ShouldBuy:
		return "buy"
	case r.ShouldSell:
		return "sell"
	default:
		return "hold"
	}
}
