package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-trade-sentinel/internal/domain"
)

var testNow = time.Unix(1_700_000_000, 0)

// Helper to build a context whose current values are the last history entries.
func makeContext(prices, liquidity []float64) domain.StrategyContext {
	sc := domain.StrategyContext{
		TokenID:          "token-1",
		PriceHistory:     prices,
		LiquidityHistory: liquidity,
		Now:              testNow,
	}
	if len(prices) > 0 {
		sc.CurrentPrice = prices[len(prices)-1]
	}
	if len(liquidity) > 0 {
		sc.CurrentLiquidity = liquidity[len(liquidity)-1]
	}
	return sc
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestWindowedStrategies_NotEnoughHistory(t *testing.T) {
	strategies := []Strategy{
		NewMomentumStrategy(DefaultMomentumWindow, DefaultMomentumThresholdPct),
		NewBreakoutStrategy(DefaultBreakoutWindow, DefaultBreakoutMarginPct),
		NewMeanReversionStrategy(DefaultMeanReversionWindow, DefaultMeanReversionDeviationPct),
		NewLiquidityGrowthStrategy(DefaultLiquidityGrowthWindow, DefaultLiquidityGrowthThresholdPct),
	}

	for _, s := range strategies {
		t.Run(s.Name(), func(t *testing.T) {
			for n := 0; n < 4; n++ {
				res := s.Evaluate(makeContext(flat(n, 1.0), flat(n, 50)))
				assert.False(t, res.ShouldBuy)
				assert.False(t, res.ShouldSell)
				assert.True(t, strings.HasPrefix(res.Reason, "not enough history"), res.Reason)
				assert.Equal(t, s.Name(), res.Strategy)
			}
		})
	}
}

func TestMomentumStrategy(t *testing.T) {
	s := NewMomentumStrategy(DefaultMomentumWindow, DefaultMomentumThresholdPct)

	t.Run("rise above threshold buys", func(t *testing.T) {
		res := s.Evaluate(makeContext([]float64{1.00, 1.01, 1.02, 1.03, 1.04}, nil))
		assert.True(t, res.ShouldBuy)
		assert.False(t, res.ShouldSell)
		require.NotNil(t, res.Score)
		assert.InDelta(t, 4.0, *res.Score, 1e-9)
	})

	t.Run("drop below threshold sells", func(t *testing.T) {
		res := s.Evaluate(makeContext([]float64{1.00, 0.99, 0.98, 0.97, 0.96}, nil))
		assert.True(t, res.ShouldSell)
		assert.False(t, res.ShouldBuy)
	})

	t.Run("small move holds", func(t *testing.T) {
		res := s.Evaluate(makeContext([]float64{1.00, 1.01, 1.00, 1.01, 1.02}, nil))
		assert.True(t, res.IsHold())
	})

	t.Run("uses only the last window", func(t *testing.T) {
		res := s.Evaluate(makeContext([]float64{0.5, 0.6, 1.00, 1.00, 1.00, 1.00, 1.00}, nil))
		assert.True(t, res.IsHold())
	})
}

func TestBreakoutStrategy(t *testing.T) {
	s := NewBreakoutStrategy(DefaultBreakoutWindow, DefaultBreakoutMarginPct)

	prices := append(flat(10, 1.0), 1.05)
	res := s.Evaluate(makeContext(prices, nil))
	assert.True(t, res.ShouldBuy, res.Reason)

	prices = append(flat(10, 1.0), 1.01)
	res = s.Evaluate(makeContext(prices, nil))
	assert.True(t, res.IsHold(), res.Reason)
	require.NotNil(t, res.Score)
	assert.InDelta(t, 1.0, *res.Score, 1e-9)
}

func TestMeanReversionStrategy(t *testing.T) {
	s := NewMeanReversionStrategy(DefaultMeanReversionWindow, DefaultMeanReversionDeviationPct)

	// 19 samples at 1.0 and a final 0.9: mean 0.995, deviation about -9.5%
	res := s.Evaluate(makeContext(append(flat(19, 1.0), 0.9), nil))
	assert.True(t, res.ShouldBuy, res.Reason)

	res = s.Evaluate(makeContext(append(flat(19, 1.0), 1.1), nil))
	assert.True(t, res.ShouldSell, res.Reason)

	res = s.Evaluate(makeContext(flat(20, 1.0), nil))
	assert.True(t, res.IsHold())
}

func TestLiquidityGrowthStrategy(t *testing.T) {
	s := NewLiquidityGrowthStrategy(DefaultLiquidityGrowthWindow, DefaultLiquidityGrowthThresholdPct)

	res := s.Evaluate(makeContext(flat(5, 1), []float64{100, 105, 110, 115, 125}))
	assert.True(t, res.ShouldBuy, res.Reason)

	res = s.Evaluate(makeContext(flat(5, 1), []float64{100, 101, 102, 103, 110}))
	assert.True(t, res.IsHold())

	res = s.Evaluate(makeContext(flat(5, 1), []float64{0, 10, 20, 30, 40}))
	assert.True(t, res.IsHold())
	assert.Equal(t, "no initial liquidity", res.Reason)
}

func TestSniperStrategy(t *testing.T) {
	s := NewSniperStrategy(DefaultSniperMaxPoolAge, DefaultSniperMinLiquiditySol)

	sc := makeContext([]float64{1}, []float64{12})
	res := s.Evaluate(sc)
	assert.True(t, res.IsHold())
	assert.Equal(t, "pool age unknown", res.Reason)

	sc.TokenMeta.PoolCreatedAt = testNow.Add(-30 * time.Second)
	res = s.Evaluate(sc)
	assert.True(t, res.ShouldBuy, res.Reason)

	sc.TokenMeta.PoolCreatedAt = testNow.Add(-2 * time.Minute)
	res = s.Evaluate(sc)
	assert.True(t, res.IsHold())

	sc.TokenMeta.PoolCreatedAt = testNow.Add(-10 * time.Second)
	sc.CurrentLiquidity = 5
	res = s.Evaluate(sc)
	assert.True(t, res.IsHold())
}

func TestCopyTradingStrategy(t *testing.T) {
	s := NewCopyTradingStrategy(DefaultCopyTradingMaxSignalAge)

	sc := makeContext([]float64{1}, nil)
	assert.True(t, s.Evaluate(sc).IsHold())

	sc.TokenMeta.SmartWallet = &domain.SmartWalletSignal{
		Wallet:    "wallet-1",
		Action:    domain.SmartWalletBuy,
		AmountSol: 3,
		SeenAt:    testNow.Add(-time.Minute),
	}
	assert.True(t, s.Evaluate(sc).ShouldBuy)

	sc.TokenMeta.SmartWallet.SeenAt = testNow.Add(-5 * time.Minute)
	assert.True(t, s.Evaluate(sc).IsHold())

	sc.TokenMeta.SmartWallet.Action = domain.SmartWalletSell
	assert.True(t, s.Evaluate(sc).ShouldSell)
}
