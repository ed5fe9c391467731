// Package provider contains the HTTP client for the exchange-rate upstream.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/provider"
)

// ExchangeRateAPIClient talks to an exchangerate-api style endpoint:
// GET {baseUrl}/{baseCurrencyCode} returning {base, rates, date}.
type ExchangeRateAPIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
	Date  string             `json:"date"`
}

// NewExchangeRateAPIClient builds a client from the exchange-rate config.
func NewExchangeRateAPIClient(cfg config.ExchangeRate, logger *slog.Logger) *ExchangeRateAPIClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExchangeRateAPIClient{
		apiKey:  cfg.ApiKey,
		baseURL: cfg.ApiUrl,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		logger: logger,
	}
}

// FetchRates fetches all rates for the base currency in one request.
func (c *ExchangeRateAPIClient) FetchRates(
	ctx context.Context,
	base string,
) (*domain.RateSnapshot, error) {
	url := fmt.Sprintf("%s/%s", c.baseURL, base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", provider.ErrNonTransient, err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// A dead caller context is not retryable; everything else
		// (client timeout, connection reset, DNS hiccup) is.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("Rate request failed", "base", base, "error", err)
		return nil, fmt.Errorf("%w: %v", provider.ErrTransient, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		if resp.StatusCode >= http.StatusInternalServerError ||
			resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: status %d: %s",
				provider.ErrTransient, resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("%w: status %d: %s",
			provider.ErrNonTransient, resp.StatusCode, string(body))
	}

	var apiResp ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v",
			provider.ErrNonTransient, err)
	}
	if len(apiResp.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rate table for %s",
			provider.ErrNonTransient, base)
	}

	rates := make(map[string]decimal.Decimal, len(apiResp.Rates))
	for code, rate := range apiResp.Rates {
		if rate <= 0 {
			c.logger.Warn("Dropping non-positive rate", "base", base, "to", code, "rate", rate)
			continue
		}
		rates[code] = decimal.NewFromFloat(rate)
	}

	c.logger.Info("Fetched exchange rates", "base", base, "count", len(rates))
	return &domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: time.Now().UTC(),
		Source:    domain.SourceLive,
	}, nil
}

// Name returns the provider's name.
func (c *ExchangeRateAPIClient) Name() string {
	return "exchangerate-api"
}

var _ provider.RateProvider = (*ExchangeRateAPIClient)(nil)
