// Package pricefeed fetches already-discovered token prices from an HTTP price API.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solana-trade-sentinel/internal/httpjson"
)

// MaxIDsPerRequest bounds the ids query parameter.
const MaxIDsPerRequest = 100

// Quote is the market state of one token.
type Quote struct {
	Price     float64
	Liquidity float64 // SOL
	Volume24h float64
}

// Fetcher returns current quotes keyed by token ID.
// Tokens the source does not know are absent from the map.
type Fetcher interface {
	FetchPrices(ctx context.Context, tokenIDs []string) (map[string]Quote, error)
}

// Config configures HTTPClient.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RateLimit  float64       `yaml:"rate_limit"`
	Burst      int           `yaml:"burst"`
}

// HTTPClient implements Fetcher.
type HTTPClient struct {
	baseURL string
	http    *httpjson.Client
}

var _ Fetcher = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient.
func NewHTTPClient(cfg Config) *HTTPClient {
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
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpjson.New(opts...),
	}
}

type priceResponse struct {
	Data map[string]*priceEntry `json:"data"`
}

type priceEntry struct {
	Price     flexFloat `json:"price"`
	Liquidity flexFloat `json:"liquidity"`
	Volume24h flexFloat `json:"volume24h"`
}

// FetchPrices issues GET {base}/price?ids=a,b in batches.
func (c *HTTPClient) FetchPrices(ctx context.Context, tokenIDs []string) (map[string]Quote, error) {
	out := make(map[string]Quote, len(tokenIDs))
	for start := 0; start < len(tokenIDs); start += MaxIDsPerRequest {
		end := start + MaxIDsPerRequest
		if end > len(tokenIDs) {
			end = len(tokenIDs)
		}

		endpoint := fmt.Sprintf("%s/price?ids=%s", c.baseURL, url.QueryEscape(strings.Join(tokenIDs[start:end], ",")))
		var resp priceResponse
		if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
			return nil, fmt.Errorf("fetch prices: %w", err)
		}

		for id, entry := range resp.Data {
			if entry == nil || entry.Price <= 0 {
				continue
			}
			out[id] = Quote{
				Price:     float64(entry.Price),
				Liquidity: float64(entry.Liquidity),
				Volume24h: float64(entry.Volume24h),
			}
		}
	}
	return out, nil
}

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

var _ json.Unmarshaler = (*flexFloat)(nil)
