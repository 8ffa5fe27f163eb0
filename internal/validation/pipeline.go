// Package validation implements the pre-trade admission pipeline.
//
// Filters run in a fixed order: cheap on-chain checks first, the external
// risk service last. A failure in the on-chain stage short-circuits the run
// so the risk service is never called for a trade that is already rejected.
package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"solana-trade-sentinel/internal/domain"
	"solana-trade-sentinel/internal/observability"
	"solana-trade-sentinel/internal/riskapi"
	"solana-trade-sentinel/internal/solana"
)

// LP lock data has no source yet; RequireLPLocked therefore always fails.
const lpLockedUnknown = false

// AccountReader is the on-chain subset the pipeline needs.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, address string) (*solana.AccountInfo, error)
	GetMintInfo(ctx context.Context, mint string) (*solana.MintInfo, error)
}

// Options tunes pipeline behavior that is fixed per process.
type Options struct {
	// FailClosedOnRiskOutage turns a risk service failure into a failed
	// risk_data_unavailable filter instead of the 0% / not-honeypot fallback.
	FailClosedOnRiskOutage bool
	// RiskTimeout bounds the risk service call. Zero means no extra bound.
	RiskTimeout time.Duration
}

// Pipeline validates proposed trades. It holds no per-run state.
type Pipeline struct {
	accounts AccountReader
	risk     riskapi.Reporter
	opts     Options
	logger   zerolog.Logger
}

// NewPipeline creates a Pipeline.
func NewPipeline(accounts AccountReader, risk riskapi.Reporter, opts Options, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		accounts: accounts,
		risk:     risk,
		opts:     opts,
		logger:   logger.With().Str("component", "validation").Logger(),
	}
}

// run accumulates one validation run.
type run struct {
	passed  []string
	failed  []string
	reasons []string
	details domain.ValidationDetails
}

func (r *run) pass(filter string) {
	if !contains(r.passed, filter) && !contains(r.failed, filter) {
		r.passed = append(r.passed, filter)
	}
}

func (r *run) fail(filter, reason string) {
	if contains(r.failed, filter) {
		return
	}
	r.passed = remove(r.passed, filter)
	r.failed = append(r.failed, filter)
	r.reasons = append(r.reasons, reason)
}

func (r *run) result() domain.ValidationResult {
	res := domain.ValidationResult{
		Approved:      len(r.failed) == 0,
		PassedFilters: r.passed,
		FailedFilters: r.failed,
		Details:       r.details,
	}
	if res.PassedFilters == nil {
		res.PassedFilters = []string{}
	}
	if res.FailedFilters == nil {
		res.FailedFilters = []string{}
	}
	if !res.Approved {
		res.Reason = strings.Join(r.reasons, "; ")
	}
	return res
}

// Validate runs every filter for a proposed buy of tokenID in poolID.
// knownLiquidity, when non-nil, is used instead of reading the pool account.
// Validate never panics and never returns an error: every failure is
// encoded in the result.
func (p *Pipeline) Validate(ctx context.Context, tokenID, poolID string, cfg domain.ValidationConfig, knownLiquidity *float64) (result domain.ValidationResult) {
	start := time.Now()
	cfg = cfg.Normalize()

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().
				Str("token", tokenID).
				Interface("panic", rec).
				Msg("validation panicked")
			result = domain.ValidationResult{
				Approved:      false,
				Reason:        fmt.Sprintf("validation error: %v", rec),
				PassedFilters: []string{},
				FailedFilters: []string{domain.FilterValidationError},
				Details: domain.ValidationDetails{
					RiskDataSource: domain.DataSourceSkipped,
					Errors:         []string{fmt.Sprint(rec)},
				},
			}
		}
		fallback := result.Details.RiskDataSource == domain.DataSourceFallback
		observability.RecordValidation(result.Approved, result.FailedFilters, fallback, time.Since(start).Seconds())
	}()

	r := &run{details: domain.ValidationDetails{RiskDataSource: domain.DataSourceSkipped}}

	if reason := checkInput(tokenID, poolID, knownLiquidity); reason != "" {
		r.fail(domain.FilterInvalidInput, reason)
		r.details.ShortCircuited = true
		return r.result()
	}

	p.checkLiquidity(ctx, r, poolID, cfg, knownLiquidity)
	p.checkAuthorities(ctx, r, tokenID, cfg)

	if len(r.failed) > 0 {
		r.details.ShortCircuited = true
		p.logger.Debug().
			Str("token", tokenID).
			Strs("failed", r.failed).
			Msg("on-chain checks failed, skipping risk service")
		return r.result()
	}

	p.checkRisk(ctx, r, tokenID, cfg)

	if cfg.RequireLPLocked {
		r.details.LPLocked = lpLockedUnknown
		if r.details.LPLocked {
			r.pass(domain.FilterLPLocked)
		} else {
			r.fail(domain.FilterLPLocked, "LP lock status unavailable")
		}
	}

	return r.result()
}

func checkInput(tokenID, poolID string, knownLiquidity *float64) string {
	if tokenID == "" {
		return "token id is required"
	}
	if err := solana.ValidateAddress(tokenID); err != nil {
		return fmt.Sprintf("invalid token id %q: %v", tokenID, err)
	}
	if knownLiquidity != nil {
		return ""
	}
	if poolID == "" {
		return "pool id is required when liquidity is not supplied"
	}
	if err := solana.ValidateAddress(poolID); err != nil {
		return fmt.Sprintf("invalid pool id %q: %v", poolID, err)
	}
	return ""
}

func (p *Pipeline) checkLiquidity(ctx context.Context, r *run, poolID string, cfg domain.ValidationConfig, knownLiquidity *float64) {
	var liquidity float64
	if knownLiquidity != nil {
		liquidity = *knownLiquidity
		r.details.LiquiditySource = "supplied"
	} else {
		r.details.LiquiditySource = "onchain"
		info, err := p.accounts.GetAccountInfo(ctx, poolID)
		if err != nil {
			p.logger.Warn().Err(err).Str("pool", poolID).Msg("pool account read failed")
			r.details.Errors = append(r.details.Errors, fmt.Sprintf("liquidity: %v", err))
			r.fail(domain.FilterLiquidity, "could not read pool liquidity")
			return
		}
		if info == nil {
			r.fail(domain.FilterLiquidity, "pool account not found")
			return
		}
		liquidity = info.SOL()
	}

	r.details.LiquiditySol = liquidity
	if liquidity < cfg.MinLiquiditySol {
		r.fail(domain.FilterLiquidity,
			fmt.Sprintf("insufficient liquidity: %.4f SOL < %.4f SOL", liquidity, cfg.MinLiquiditySol))
		return
	}
	r.pass(domain.FilterLiquidity)
}

func (p *Pipeline) checkAuthorities(ctx context.Context, r *run, tokenID string, cfg domain.ValidationConfig) {
	if !cfg.RequireMintDisabled && !cfg.RequireFreezeDisabled {
		return
	}

	mint, err := p.accounts.GetMintInfo(ctx, tokenID)
	if err == nil && mint == nil {
		err = errors.New("mint account not found")
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("token", tokenID).Msg("mint account read failed")
		r.details.Errors = append(r.details.Errors, fmt.Sprintf("mint: %v", err))
		if cfg.RequireMintDisabled {
			r.fail(domain.FilterMintAuthority, "could not verify mint authority")
		}
		if cfg.RequireFreezeDisabled {
			r.fail(domain.FilterFreezeAuthority, "could not verify freeze authority")
		}
		return
	}

	r.details.MintAuthority = mint.MintAuthority
	r.details.FreezeAuthority = mint.FreezeAuthority
	if mint.MintAuthority != "" {
		if pda, err := solana.IsPDA(mint.MintAuthority); err == nil {
			r.details.MintAuthorityIsPDA = pda
		}
	}

	if cfg.RequireMintDisabled {
		if mint.MintAuthority == "" {
			r.pass(domain.FilterMintAuthority)
		} else {
			r.fail(domain.FilterMintAuthority, "mint authority is enabled: "+mint.MintAuthority)
		}
	}
	if cfg.RequireFreezeDisabled {
		if mint.FreezeAuthority == "" {
			r.pass(domain.FilterFreezeAuthority)
		} else {
			r.fail(domain.FilterFreezeAuthority, "freeze authority is enabled: "+mint.FreezeAuthority)
		}
	}
}

// checkRisk fetches the report once and applies buy_tax, sell_tax and honeypot.
func (p *Pipeline) checkRisk(ctx context.Context, r *run, tokenID string, cfg domain.ValidationConfig) {
	report, err := p.fetchReport(ctx, tokenID)
	if err != nil {
		p.logger.Warn().Err(err).Str("token", tokenID).Msg("risk service unavailable, using fallback")
		r.details.RiskDataSource = domain.DataSourceFallback
		r.details.Errors = append(r.details.Errors, fmt.Sprintf("risk: %v", err))
		if p.opts.FailClosedOnRiskOutage {
			r.fail(domain.FilterRiskDataUnavailable, "risk data unavailable")
			return
		}
		report = &riskapi.Report{}
	} else {
		r.details.RiskDataSource = domain.DataSourceLive
	}

	r.details.BuyTaxPct = report.BuyTaxPct
	r.details.SellTaxPct = report.SellTaxPct
	r.details.IsHoneypot = report.IsHoneypot()

	if report.BuyTaxPct > cfg.MaxBuyTaxPct {
		r.fail(domain.FilterBuyTax, fmt.Sprintf("buy tax %.2f%% exceeds %.2f%%", report.BuyTaxPct, cfg.MaxBuyTaxPct))
	} else {
		r.pass(domain.FilterBuyTax)
	}
	if report.SellTaxPct > cfg.MaxSellTaxPct {
		r.fail(domain.FilterSellTax, fmt.Sprintf("sell tax %.2f%% exceeds %.2f%%", report.SellTaxPct, cfg.MaxSellTaxPct))
	} else {
		r.pass(domain.FilterSellTax)
	}
	if r.details.IsHoneypot {
		r.fail(domain.FilterHoneypot, "token flagged as honeypot")
	} else {
		r.pass(domain.FilterHoneypot)
	}
}

func (p *Pipeline) fetchReport(ctx context.Context, tokenID string) (*riskapi.Report, error) {
	if p.risk == nil {
		return nil, errors.New("no risk reporter configured")
	}
	if p.opts.RiskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.RiskTimeout)
		defer cancel()
	}
	report, err := p.risk.GetRiskReport(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, errors.New("empty risk report")
	}
	return report, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
