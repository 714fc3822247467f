// Package brokerobs wraps a Brokerage with logging and tracing middleware.
package brokerobs

import (
	"context"

	"agent-trader/internal/interfaces"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

type observableBrokerage struct {
	brokerage interfaces.Brokerage
}

var _ interfaces.Brokerage = (*observableBrokerage)(nil)

// Wrap wraps a brokerage with observability middleware.
func Wrap(brokerage interfaces.Brokerage) interfaces.Brokerage {
	return &observableBrokerage{brokerage: brokerage}
}

func (ob *observableBrokerage) CreateOrder(ctx context.Context, req types.OrderReq) (types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.CreateOrder")
	defer span.End()

	logger.InfoSkip(ctx, 1, "Submitting order",
		"symbol", req.Symbol,
		"side", req.Side,
		"qty", req.Qty,
		"type", req.Type,
	)

	order, err := ob.brokerage.CreateOrder(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Order submission failed", err,
			"symbol", req.Symbol,
			"side", req.Side,
			"qty", req.Qty,
		)
		return types.Order{}, err
	}

	logger.InfoSkip(ctx, 1, "Order submitted",
		"symbol", req.Symbol,
		"order_id", order.ID,
		"status", order.Status,
	)
	return order, nil
}

func (ob *observableBrokerage) ListOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.ListOpenOrders")
	defer span.End()

	orders, err := ob.brokerage.ListOpenOrders(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to list open orders", err, "symbol", symbol)
		return nil, err
	}

	logger.DebugSkip(ctx, 1, "Open orders listed", "symbol", symbol, "count", len(orders))
	return orders, nil
}

func (ob *observableBrokerage) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := trace.StartSpan(ctx, "brokerage.CancelOrder")
	defer span.End()

	if err := ob.brokerage.CancelOrder(ctx, orderID); err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to cancel order", err, "order_id", orderID)
		return err
	}

	logger.InfoSkip(ctx, 1, "Order cancellation issued", "order_id", orderID)
	return nil
}

func (ob *observableBrokerage) Account(ctx context.Context) (types.Account, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.Account")
	defer span.End()

	acct, err := ob.brokerage.Account(ctx)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch account", err)
		return types.Account{}, err
	}

	logger.DebugSkip(ctx, 1, "Account fetched",
		"total_value", acct.TotalValue,
		"buying_power", acct.BuyingPower,
		"day_change", acct.DayChange,
	)
	return acct, nil
}

func (ob *observableBrokerage) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	ctx, span := trace.StartSpan(ctx, "brokerage.LatestQuote")
	defer span.End()

	price, err := ob.brokerage.LatestQuote(ctx, symbol)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch quote", err, "symbol", symbol)
		return 0, err
	}

	logger.DebugSkip(ctx, 1, "Quote fetched", "symbol", symbol, "price", price)
	return price, nil
}
