package exchange

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

// RestGateway submits orders through the order gateway service, which
// fronts the venue-specific execution adapters.
type RestGateway struct {
	client *resty.Client
}

func NewRestGateway(baseURL string, timeout time.Duration) *RestGateway {
	return &RestGateway{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetTimeout(timeout).
			SetRetryCount(1).
			SetRetryWaitTime(100 * time.Millisecond),
	}
}

type orderRequest struct {
	Venue  string `json:"venue"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Amount string `json:"amount"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Price   string `json:"price"`
	Filled  string `json:"filled"`
	Reason  string `json:"reason"`
}

func (g *RestGateway) PlaceOrder(ctx context.Context, venue, symbol, side string, amount string) (*models.TradeResult, error) {
	var out orderResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(orderRequest{Venue: venue, Symbol: symbol, Side: side, Amount: amount}).
		SetResult(&out).
		Post("/v1/orders")
	if err != nil {
		return nil, fmt.Errorf("place order %s/%s: %w", venue, symbol, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("place order %s/%s: status %d", venue, symbol, resp.StatusCode())
	}

	amt, _ := decimal.NewFromString(amount)
	price, _ := decimal.NewFromString(out.Price)
	filled, _ := decimal.NewFromString(out.Filled)

	res := &models.TradeResult{
		Symbol:     symbol,
		Venue:      venue,
		Success:    out.Status == "filled",
		Amount:     amt,
		Price:      price,
		Output:     filled,
		ExecutedAt: time.Now().UnixMilli(),
	}
	if !res.Success {
		res.FailReason = fmt.Sprintf("order_%s:%s", out.Status, out.Reason)
	}
	return res, nil
}

var _ domrepo.OrderGateway = (*RestGateway)(nil)
