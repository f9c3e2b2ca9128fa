package dexapi

import (
	"context"
	"fmt"
	"strings"
	"time"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

func newClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond)
}

// Resolver resolves symbols to contract addresses through the token
// resolver service.
type Resolver struct {
	client *resty.Client
}

func NewResolver(baseURL string, timeout time.Duration) *Resolver {
	return &Resolver{client: newClient(baseURL, timeout)}
}

func (r *Resolver) Resolve(ctx context.Context, symbol, chain string) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"symbol": symbol, "chain": chain}).
		SetResult(&out).
		Get("/v1/resolve")
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", symbol, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("resolve %s: status %d", symbol, resp.StatusCode())
	}
	return out.Address, nil
}

var _ domrepo.ContractResolver = (*Resolver)(nil)

// SafetyClient fronts the honeypot and tax scanning service.
type SafetyClient struct {
	client *resty.Client
}

func NewSafetyClient(baseURL string, timeout time.Duration) *SafetyClient {
	return &SafetyClient{client: newClient(baseURL, timeout)}
}

func (s *SafetyClient) Check(ctx context.Context, address, chain string) (*models.SafetyReport, error) {
	var out struct {
		Safe    bool   `json:"safe"`
		BuyTax  string `json:"buy_tax"`
		SellTax string `json:"sell_tax"`
		Reason  string `json:"reason"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"address": address, "chain": chain}).
		SetResult(&out).
		Get("/v1/safety")
	if err != nil {
		return nil, fmt.Errorf("safety check %s: %w", address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("safety check %s: status %d", address, resp.StatusCode())
	}

	report := &models.SafetyReport{Safe: out.Safe, Reason: out.Reason}
	report.BuyTax, _ = decimal.NewFromString(out.BuyTax)
	report.SellTax, _ = decimal.NewFromString(out.SellTax)
	return report, nil
}

var _ domrepo.SafetyChecker = (*SafetyClient)(nil)

// QuoteClient fetches swap quotes from the aggregator service.
type QuoteClient struct {
	client *resty.Client
}

func NewQuoteClient(baseURL string, timeout time.Duration) *QuoteClient {
	return &QuoteClient{client: newClient(baseURL, timeout)}
}

func (q *QuoteClient) Quote(ctx context.Context, address, chain, amount string) (*models.Quote, error) {
	var out struct {
		Symbol         string `json:"symbol"`
		Price          string `json:"price"`
		ExpectedOutput string `json:"expected_output"`
		GasEstimate    string `json:"gas_estimate"`
	}
	resp, err := q.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"address": address, "chain": chain, "amount": amount}).
		SetResult(&out).
		Get("/v1/quote")
	if err != nil {
		return nil, fmt.Errorf("quote %s: %w", address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote %s: status %d", address, resp.StatusCode())
	}

	quote := &models.Quote{Symbol: out.Symbol}
	quote.Price, _ = decimal.NewFromString(out.Price)
	quote.ExpectedOutput, _ = decimal.NewFromString(out.ExpectedOutput)
	quote.GasEstimate, _ = decimal.NewFromString(out.GasEstimate)
	if !quote.Price.IsPositive() {
		return nil, fmt.Errorf("quote %s: non-positive price", address)
	}
	return quote, nil
}

var _ domrepo.QuoteService = (*QuoteClient)(nil)
