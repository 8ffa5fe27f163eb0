package domain

// StrategyConfig represents strategy configuration parameters.
// Unset parameters fall back to the strategy's reference thresholds.
type StrategyConfig struct {
	StrategyType string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Window       *int     `yaml:"window"`
	ThresholdPct *float64 `yaml:"threshold_pct"`

	// SNIPER parameters
	MinLiquiditySol *float64 `yaml:"min_liquidity_sol"`
	MaxPoolAgeSec   *int64   `yaml:"max_pool_age_sec"`

	// COPY_TRADING parameters
	MaxSignalAgeSec *int64 `yaml:"max_signal_age_sec"`
}

// Strategy type constants
const (
	StrategyTypeMomentum        = "momentum"
	StrategyTypeBreakout        = "breakout"
	StrategyTypeMeanReversion   = "mean_reversion"
	StrategyTypeLiquidityGrowth = "liquidity_growth"
	StrategyTypeSniper          = "sniper"
	StrategyTypeCopyTrading     = "copy_trading"
)
