package strategy

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
)

// Engine is an ordered registry of strategies.
// Duplicate names are allowed; every registered instance runs.
type Engine struct {
	mu         sync.RWMutex
	strategies []Strategy
	logger     zerolog.Logger
}

// NewEngine creates an empty engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "strategy-engine").Logger(),
	}
}

// Register appends a strategy.
func (e *Engine) Register(s Strategy) {
	e.mu.Lock()
	e.strategies = append(e.strategies, s)
	e.mu.Unlock()
}

// Strategies returns a snapshot of registered strategies in registration order.
func (e *Engine) Strategies() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Strategy, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// EvaluateAll runs every strategy concurrently against the same snapshot.
// Results follow registration order regardless of completion order.
func (e *Engine) EvaluateAll(sc domain.StrategyContext) []domain.StrategyResult {
	strategies := e.Strategies()
	results := make([]domain.StrategyResult, len(strategies))

	var wg sync.WaitGroup
	for i, s := range strategies {
		wg.Add(1)
		go func(i int, s Strategy) {
			defer wg.Done()
			results[i] = e.evaluate(s, sc)
		}(i, s)
	}
	wg.Wait()

	return results
}

// evaluate runs one strategy, converting a panic into a hold.
func (e *Engine) evaluate(s Strategy, sc domain.StrategyContext) (res domain.StrategyResult) {
	name := s.Name()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Str("strategy", name).
				Str("token", sc.TokenID).
				Interface("panic", r).
				Msg("strategy panicked")
			res = hold(name, fmt.Sprintf("strategy panicked: %v", r))
		}
	}()

	res = s.Evaluate(sc)
	if res.Strategy == "" {
		res.Strategy = name
	}
	return res
}

// BestSignal aggregates EvaluateAll. The first buy wins over any sell;
// without a buy the first sell wins; otherwise the highest defined score.
// Returns false when no result qualifies.
func (e *Engine) BestSignal(sc domain.StrategyContext) (domain.StrategyResult, bool) {
	return Aggregate(e.EvaluateAll(sc))
}

// Aggregate applies the BestSignal rules to an ordered result set.
func Aggregate(results []domain.StrategyResult) (domain.StrategyResult, bool) {
	for _, r := range results {
		if r.ShouldBuy {
			return r, true
		}
	}
	for _, r := range results {
		if r.ShouldSell {
			return r, true
		}
	}

	best := -1
	for i, r := range results {
		if r.Score == nil {
			continue
		}
		if best < 0 || *r.Score > *results[best].Score {
			best = i
		}
	}
	if best < 0 {
		return domain.StrategyResult{}, false
	}
	return results[best], true
}
