// Package riskapi is the adapter for the third-party token risk-scoring service.
package riskapi

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"solana-trade-sentinel/internal/httpjson"
)

// Risk is one finding in a report.
type Risk struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// Report is the risk service's assessment of a token.
type Report struct {
	BuyTaxPct  float64 `json:"buyTaxPct"`
	SellTaxPct float64 `json:"sellTaxPct"`
	Risks      []Risk  `json:"risks"`
}

// IsHoneypot reports whether any finding is named like a honeypot.
func (r *Report) IsHoneypot() bool {
	if r == nil {
		return false
	}
	for _, risk := range r.Risks {
		if strings.Contains(strings.ToLower(risk.Name), "honeypot") {
			return true
		}
	}
	return false
}

// RiskNames returns the names of all findings.
func (r *Report) RiskNames() []string {
	if r == nil {
		return nil
	}
	names := make([]string, len(r.Risks))
	for i, risk := range r.Risks {
		names[i] = risk.Name
	}
	return names
}

// Reporter fetches risk reports.
type Reporter interface {
	GetRiskReport(ctx context.Context, tokenID string) (*Report, error)
}

// Config configures Client.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"` // requests per second, 0 disables
	Burst      int           `yaml:"burst"`
}

// Client implements Reporter over HTTP.
type Client struct {
	baseURL string
	http    *httpjson.Client
}

var _ Reporter = (*Client)(nil)

// New creates a Client.
func New(cfg Config) *Client {
	opts := []httpjson.Option{httpjson.WithRateLimit(cfg.RateLimit, cfg.Burst)}
	if cfg.Timeout > 0 {
		opts = append(opts, httpjson.WithTimeout(cfg.Timeout))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, httpjson.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.APIKey != "" {
		opts = append(opts, httpjson.WithHeader("X-API-KEY", cfg.APIKey))
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpjson.New(opts...),
	}
}

// GetRiskReport fetches GET {base}/v1/tokens/{mint}/report.
func (c *Client) GetRiskReport(ctx context.Context, tokenID string) (*Report, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("risk api: base url not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/tokens/%s/report", c.baseURL, url.PathEscape(tokenID))

	var report Report
	if err := c.http.GetJSON(ctx, endpoint, &report); err != nil {
		return nil, fmt.Errorf("risk report %s: %w", tokenID, err)
	}
	return &report, nil
}
