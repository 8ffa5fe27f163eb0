// Package sizing converts an account balance and a risk preference into a
// bounded trade size.
package sizing

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"solana-trade-sentinel/internal/domain"
)

// ErrInvalidBalance is returned for a non-positive or non-finite balance.
var ErrInvalidBalance = errors.New("balance must be a positive finite number")

// MinimumTradeSize is the smallest trade the sizer will propose, in SOL.
const MinimumTradeSize = 0.001

// Preset risk percentages.
const (
	ConservativePct = 1.0
	ModeratePct     = 2.5
	AggressivePct   = 5.0
	DefaultPct      = ConservativePct
)

var hundred = decimal.NewFromInt(100)

// Calculator sizes trades.
type Calculator struct {
	minimum decimal.Decimal
}

// NewCalculator creates a Calculator. A non-positive minimum uses MinimumTradeSize.
func NewCalculator(minimum float64) *Calculator {
	if minimum <= 0 || math.IsNaN(minimum) || math.IsInf(minimum, 0) {
		minimum = MinimumTradeSize
	}
	return &Calculator{minimum: decimal.NewFromFloat(minimum)}
}

// Calculate returns the chosen risk amount and the fixed presets.
//
// A positive riskAmount takes precedence and derives the percent; otherwise a
// positive riskPercent derives the amount; otherwise DefaultPct applies. The
// amount is clamped to balance and then raised to the minimum trade size, and
// the percent is recomputed whenever clamping changed the amount.
func (c *Calculator) Calculate(balance float64, riskPercent, riskAmount *float64) (domain.RiskCalculation, error) {
	if balance <= 0 || math.IsNaN(balance) || math.IsInf(balance, 0) {
		return domain.RiskCalculation{}, ErrInvalidBalance
	}

	bal := decimal.NewFromFloat(balance)

	var amount, pct decimal.Decimal
	switch {
	case usable(riskAmount):
		amount = decimal.NewFromFloat(*riskAmount)
		pct = amount.Div(bal).Mul(hundred)
	case usable(riskPercent):
		pct = decimal.NewFromFloat(*riskPercent)
		amount = bal.Mul(pct).Div(hundred)
	default:
		pct = decimal.NewFromFloat(DefaultPct)
		amount = bal.Mul(pct).Div(hundred)
	}

	res := domain.RiskCalculation{
		Balance:        balance,
		Recommendation: presets(bal),
	}

	if amount.GreaterThan(bal) {
		amount = bal
		res.ClampedToBalance = true
	}
	if amount.LessThan(c.minimum) {
		amount = c.minimum
		res.ClampedToMinimum = true
	}
	if res.ClampedToBalance || res.ClampedToMinimum {
		pct = amount.Div(bal).Mul(hundred)
	}

	res.RiskAmount = amount.InexactFloat64()
	res.RiskPercent = pct.Round(4).InexactFloat64()
	return res, nil
}

// Presets returns the fixed recommendations for a balance.
func Presets(balance float64) domain.RiskRecommendation {
	return presets(decimal.NewFromFloat(balance))
}

func presets(bal decimal.Decimal) domain.RiskRecommendation {
	at := func(pct float64) float64 {
		return bal.Mul(decimal.NewFromFloat(pct)).Div(hundred).InexactFloat64()
	}
	return domain.RiskRecommendation{
		Conservative: at(ConservativePct),
		Moderate:     at(ModeratePct),
		Aggressive:   at(AggressivePct),
	}
}

func usable(v *float64) bool {
	return v != nil && *v > 0 && !math.IsNaN(*v) && !math.IsInf(*v, 0)
}
