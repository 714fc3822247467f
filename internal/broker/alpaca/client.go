// Package alpaca implements the brokerage execution API over its REST
// surface. Provider error codes are mapped into the brokererr taxonomy
// here and nowhere else.
package alpaca

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"agent-trader/internal/brokererr"
	"agent-trader/internal/logger"
	"agent-trader/internal/pkg/circuit"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// Params configures a brokerage client.
type Params struct {
	Mode    string // DRY_RUN | LIVE
	BaseURL string
	Key     string
	Secret  string
	Timeout time.Duration
	Seed    int64 // DRY_RUN quote simulation seed
}

// Client talks to the live brokerage REST API.
type Client struct {
	http    *resty.Client
	breaker *circuit.Breaker
}

// NewClient builds a live REST client with auth headers and a circuit
// breaker guarding the endpoint.
func NewClient(p Params) *Client {
	httpc := resty.New().
		SetBaseURL(p.BaseURL).
		SetTimeout(p.Timeout).
		SetHeader("APCA-API-KEY-ID", p.Key).
		SetHeader("APCA-API-SECRET-KEY", p.Secret)

	return &Client{
		http:    httpc,
		breaker: circuit.NewBreaker("brokerage", 5, 30*time.Second),
	}
}

// Wire shapes for the provider API.
type providerOrder struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           string    `json:"side"`
	Qty            int       `json:"qty,string"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	FilledAvgPrice float64   `json:"filled_avg_price,string,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type providerAccount struct {
	PortfolioValue float64 `json:"portfolio_value,string"`
	BuyingPower    float64 `json:"buying_power,string"`
	Equity         float64 `json:"equity,string"`
	LastEquity     float64 `json:"last_equity,string"`
}

type providerQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

type providerError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) CreateOrder(ctx context.Context, req types.OrderReq) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "alpaca.CreateOrder")
	defer span.End()

	if !c.breaker.Allow() {
		return types.Order{}, fmt.Errorf("brokerage circuit open, order not submitted")
	}

	body := map[string]any{
		"symbol":        req.Symbol,
		"qty":           fmt.Sprintf("%d", req.Qty),
		"side":          string(req.Side),
		"type":          req.Type,
		"time_in_force": req.TimeInForce,
	}
	if req.LimitPrice != nil {
		body["limit_price"] = fmt.Sprintf("%.2f", *req.LimitPrice)
	}
	if req.StopPrice != nil {
		body["stop_price"] = fmt.Sprintf("%.2f", *req.StopPrice)
	}

	var (
		out  providerOrder
		perr providerError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&perr).
		Post("/v2/orders")
	if err != nil {
		c.breaker.RecordFailure()
		return types.Order{}, fmt.Errorf("create order: %w", err)
	}
	if resp.IsError() {
		// Order rejections are the provider doing its job, not an
		// endpoint failure; they do not trip the breaker.
		c.breaker.RecordSuccess()
		return types.Order{}, brokererr.FromProviderCode(perr.Code, perr.Message)
	}
	c.breaker.RecordSuccess()

	logger.Debug(ctx, "Order submitted", "symbol", req.Symbol, "side", req.Side,
		"qty", req.Qty, "order_id", out.ID, "status", out.Status)
	return toOrder(out), nil
}

func (c *Client) ListOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "alpaca.ListOpenOrders")
	defer span.End()

	if !c.breaker.Allow() {
		return nil, fmt.Errorf("brokerage circuit open")
	}

	var (
		out  []providerOrder
		perr providerError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"status":  "open",
			"symbols": symbol,
		}).
		SetResult(&out).
		SetError(&perr).
		Get("/v2/orders")
	if err != nil {
		c.breaker.RecordFailure()
		return nil, fmt.Errorf("list open orders: %w", err)
	}
	if resp.IsError() {
		c.breaker.RecordFailure()
		return nil, brokererr.FromProviderCode(perr.Code, perr.Message)
	}
	c.breaker.RecordSuccess()

	orders := make([]types.Order, 0, len(out))
	for _, po := range out {
		orders = append(orders, toOrder(po))
	}
	return orders, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "alpaca.CancelOrder")
	defer span.End()

	if !c.breaker.Allow() {
		return fmt.Errorf("brokerage circuit open")
	}

	var perr providerError
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&perr).
		Delete("/v2/orders/" + orderID)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	if resp.IsError() {
		c.breaker.RecordSuccess()
		return brokererr.FromProviderCode(perr.Code, perr.Message)
	}
	c.breaker.RecordSuccess()
	return nil
}

func (c *Client) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "alpaca.Account")
	defer span.End()

	if !c.breaker.Allow() {
		return types.Account{}, fmt.Errorf("brokerage circuit open")
	}

	var (
		out  providerAccount
		perr providerError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&perr).
		Get("/v2/account")
	if err != nil {
		c.breaker.RecordFailure()
		return types.Account{}, fmt.Errorf("get account: %w", err)
	}
	if resp.IsError() {
		c.breaker.RecordFailure()
		return types.Account{}, brokererr.FromProviderCode(perr.Code, perr.Message)
	}
	c.breaker.RecordSuccess()

	return types.Account{
		TotalValue:  out.PortfolioValue,
		BuyingPower: out.BuyingPower,
		DayChange:   out.Equity - out.LastEquity,
	}, nil
}

func (c *Client) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "alpaca.LatestQuote")
	defer span.End()

	if !c.breaker.Allow() {
		return 0, fmt.Errorf("brokerage circuit open")
	}

	var (
		out  providerQuote
		perr providerError
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&perr).
		Get("/v2/quotes/" + symbol + "/latest")
	if err != nil {
		c.breaker.RecordFailure()
		return 0, fmt.Errorf("latest quote %s: %w", symbol, err)
	}
	if resp.IsError() {
		c.breaker.RecordFailure()
		return 0, brokererr.FromProviderCode(perr.Code, perr.Message)
	}
	c.breaker.RecordSuccess()
	return out.Price, nil
}

func toOrder(po providerOrder) types.Order {
	return types.Order{
		ID:             po.ID,
		Symbol:         po.Symbol,
		Side:           types.OrderSide(strings.ToLower(po.Side)),
		Qty:            po.Qty,
		Type:           po.Type,
		Status:         po.Status,
		FilledAvgPrice: po.FilledAvgPrice,
		CreatedAt:      po.CreatedAt,
	}
}
