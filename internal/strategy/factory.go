package strategy

import (
	"errors"
	"fmt"
	"time"

	"solana-trade-sentinel/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrInvalidParameter    = errors.New("invalid strategy parameter")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Unset parameters take the reference thresholds; set ones are validated.
// A non-empty Name replaces the type name on results.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	s, err := fromConfig(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Name != "" && cfg.Name != s.Name() {
		return &named{Strategy: s, name: cfg.Name}, nil
	}
	return s, nil
}

func fromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeMomentum:
		w, th, err := windowAndThreshold(cfg, DefaultMomentumWindow, DefaultMomentumThresholdPct)
		if err != nil {
			return nil, err
		}
		return NewMomentumStrategy(w, th), nil
	case domain.StrategyTypeBreakout:
		w, th, err := windowAndThreshold(cfg, DefaultBreakoutWindow, DefaultBreakoutMarginPct)
		if err != nil {
			return nil, err
		}
		return NewBreakoutStrategy(w, th), nil
	case domain.StrategyTypeMeanReversion:
		w, th, err := windowAndThreshold(cfg, DefaultMeanReversionWindow, DefaultMeanReversionDeviationPct)
		if err != nil {
			return nil, err
		}
		return NewMeanReversionStrategy(w, th), nil
	case domain.StrategyTypeLiquidityGrowth:
		w, th, err := windowAndThreshold(cfg, DefaultLiquidityGrowthWindow, DefaultLiquidityGrowthThresholdPct)
		if err != nil {
			return nil, err
		}
		return NewLiquidityGrowthStrategy(w, th), nil
	case domain.StrategyTypeSniper:
		return fromSniperConfig(cfg)
	case domain.StrategyTypeCopyTrading:
		return fromCopyTradingConfig(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

// FromConfigs builds every configured strategy, stopping at the first error.
func FromConfigs(cfgs []domain.StrategyConfig) ([]Strategy, error) {
	out := make([]Strategy, 0, len(cfgs))
	for i, cfg := range cfgs {
		s, err := FromConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("strategies[%d]: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// DefaultSet returns the six reference strategies with reference thresholds.
func DefaultSet() []Strategy {
	return []Strategy{
		NewMomentumStrategy(DefaultMomentumWindow, DefaultMomentumThresholdPct),
		NewBreakoutStrategy(DefaultBreakoutWindow, DefaultBreakoutMarginPct),
		NewMeanReversionStrategy(DefaultMeanReversionWindow, DefaultMeanReversionDeviationPct),
		NewLiquidityGrowthStrategy(DefaultLiquidityGrowthWindow, DefaultLiquidityGrowthThresholdPct),
		NewSniperStrategy(DefaultSniperMaxPoolAge, DefaultSniperMinLiquiditySol),
		NewCopyTradingStrategy(DefaultCopyTradingMaxSignalAge),
	}
}

func windowAndThreshold(cfg domain.StrategyConfig, window int, threshold float64) (int, float64, error) {
	if cfg.Window != nil {
		if *cfg.Window < 2 {
			return 0, 0, fmt.Errorf("%w: %s window must be >= 2, got %d", ErrInvalidParameter, cfg.StrategyType, *cfg.Window)
		}
		window = *cfg.Window
	}
	if cfg.ThresholdPct != nil {
		if *cfg.ThresholdPct <= 0 {
			return 0, 0, fmt.Errorf("%w: %s threshold_pct must be > 0", ErrInvalidParameter, cfg.StrategyType)
		}
		threshold = *cfg.ThresholdPct
	}
	return window, threshold, nil
}

func fromSniperConfig(cfg domain.StrategyConfig) (*SniperStrategy, error) {
	maxAge := DefaultSniperMaxPoolAge
	if cfg.MaxPoolAgeSec != nil {
		if *cfg.MaxPoolAgeSec <= 0 {
			return nil, fmt.Errorf("%w: sniper max_pool_age_sec must be > 0", ErrInvalidParameter)
		}
		maxAge = time.Duration(*cfg.MaxPoolAgeSec) * time.Second
	}
	minLiq := DefaultSniperMinLiquiditySol
	if cfg.MinLiquiditySol != nil {
		if *cfg.MinLiquiditySol < 0 {
			return nil, fmt.Errorf("%w: sniper min_liquidity_sol must be >= 0", ErrInvalidParameter)
		}
		minLiq = *cfg.MinLiquiditySol
	}
	return NewSniperStrategy(maxAge, minLiq), nil
}

func fromCopyTradingConfig(cfg domain.StrategyConfig) (*CopyTradingStrategy, error) {
	maxAge := DefaultCopyTradingMaxSignalAge
	if cfg.MaxSignalAgeSec != nil {
		if *cfg.MaxSignalAgeSec <= 0 {
			return nil, fmt.Errorf("%w: copy_trading max_signal_age_sec must be > 0", ErrInvalidParameter)
		}
		maxAge = time.Duration(*cfg.MaxSignalAgeSec) * time.Second
	}
	return NewCopyTradingStrategy(maxAge), nil
}

// named overrides the result name of a wrapped strategy.
type named struct {
	Strategy
	name string
}

func (n *named) Name() string { return n.name }

func (n *named) Evaluate(sc domain.StrategyContext) domain.StrategyResult {
	res := n.Strategy.Evaluate(sc)
	res.Strategy = n.name
	return res
}
