package domain

import "math"

// Validation filter names.
const (
	FilterInvalidInput        = "invalid_input"
	FilterLiquidity           = "liquidity"
	FilterMintAuthority       = "mint_authority"
	FilterFreezeAuthority     = "freeze_authority"
	FilterBuyTax              = "buy_tax"
	FilterSellTax             = "sell_tax"
	FilterHoneypot            = "honeypot"
	FilterLPLocked            = "lp_locked"
	FilterRiskDataUnavailable = "risk_data_unavailable"
	FilterValidationError     = "validation_error"
)

// DataSource names where a piece of risk data came from.
type DataSource string

const (
	DataSourceLive     DataSource = "live"
	DataSourceFallback DataSource = "fallback" // safe default because the service failed
	DataSourceSkipped  DataSource = "skipped"  // never requested (short-circuit)
)

// ValidationConfig is supplied by the caller for one validation run.
type ValidationConfig struct {
	MinLiquiditySol       float64 `yaml:"min_liquidity_sol" json:"minLiquiditySol"`
	MaxBuyTaxPct          float64 `yaml:"max_buy_tax_pct" json:"maxBuyTaxPct"`
	MaxSellTaxPct         float64 `yaml:"max_sell_tax_pct" json:"maxSellTaxPct"`
	RequireMintDisabled   bool    `yaml:"require_mint_disabled" json:"requireMintDisabled"`
	RequireFreezeDisabled bool    `yaml:"require_freeze_disabled" json:"requireFreezeDisabled"`
	RequireLPLocked       bool    `yaml:"require_lp_locked" json:"requireLpLocked"`
}

// Normalize returns a copy with values clamped into range. A zero tax
// ceiling is kept: it means no tax is tolerated.
func (c ValidationConfig) Normalize() ValidationConfig {
	c.MinLiquiditySol = math.Max(c.MinLiquiditySol, 0)
	c.MaxBuyTaxPct = clampPct(c.MaxBuyTaxPct)
	c.MaxSellTaxPct = clampPct(c.MaxSellTaxPct)
	return c
}

func clampPct(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// ValidationDetails carries the observed values behind a ValidationResult.
type ValidationDetails struct {
	LiquiditySol       float64    `json:"liquiditySol"`
	LiquiditySource    string     `json:"liquiditySource,omitempty"` // "supplied" | "onchain"
	MintAuthority      string     `json:"mintAuthority,omitempty"`
	FreezeAuthority    string     `json:"freezeAuthority,omitempty"`
	MintAuthorityIsPDA bool       `json:"mintAuthorityIsPda,omitempty"`
	BuyTaxPct          float64    `json:"buyTaxPct"`
	SellTaxPct         float64    `json:"sellTaxPct"`
	IsHoneypot         bool       `json:"isHoneypot"`
	LPLocked           bool       `json:"lpLocked"`
	RiskDataSource     DataSource `json:"riskDataSource"`
	ShortCircuited     bool       `json:"shortCircuited"`
	Errors             []string   `json:"errors,omitempty"`
}

// ValidationResult is the outcome of one validation run.
// Approved is true iff FailedFilters is empty.
type ValidationResult struct {
	Approved      bool              `json:"approved"`
	Reason        string            `json:"reason,omitempty"`
	PassedFilters []string          `json:"passedFilters"`
	FailedFilters []string          `json:"failedFilters"`
	Details       ValidationDetails `json:"details"`
}

// HasFailed reports whether the named filter failed.
func (r ValidationResult) HasFailed(filter string) bool {
	for _, f := range r.FailedFilters {
		if f == filter {
			return true
		}
	}
	return false
}

// HasPassed reports whether the named filter passed.
func (r ValidationResult) HasPassed(filter string) bool {
	for _, f := range r.PassedFilters {
		if f == filter {
			return true
		}
	}
	return false
}
