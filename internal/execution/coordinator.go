// Package execution submits validated orders to the brokerage. Each
// attempt walks RESOLVING_CONFLICTS -> SUBMITTING -> FILLED | REJECTED:
// opposite-side open orders for the symbol are cancelled first so the new
// order does not bounce off the provider's wash-trade protection.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agent-trader/internal/brokererr"
	"agent-trader/internal/interfaces"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// Coordinator resolves conflicting orders and submits new ones. It never
// retries a rejected submission; the caller decides whether to resubmit.
type Coordinator struct {
	brokerage   interfaces.Brokerage
	broadcaster interfaces.Broadcaster
	// settleDelay is how long to wait after issuing cancellations before
	// submitting. Brokerage cancellation is asynchronous and there is no
	// completion callback, so this is a best-effort mitigation.
	settleDelay time.Duration
}

// New creates a Coordinator. broadcaster may be nil.
func New(brokerage interfaces.Brokerage, broadcaster interfaces.Broadcaster, settleDelay time.Duration) *Coordinator {
	return &Coordinator{
		brokerage:   brokerage,
		broadcaster: broadcaster,
		settleDelay: settleDelay,
	}
}

// Execute runs one submission attempt for a validated decision. The
// decision is immutable here: its action and quantity arrive final.
func (c *Coordinator) Execute(ctx context.Context, decision types.TradingDecision) (*types.ExecutionResult, error) {
	ctx, span := trace.StartSpan(ctx, "execution.Execute")
	defer span.End()

	side, err := sideFor(decision.Action)
	if err != nil {
		return nil, err
	}

	result := &types.ExecutionResult{State: types.StateResolvingConflicts}

	cancelled, err := c.resolveConflicts(ctx, decision.Symbol, side)
	if err != nil {
		// Listing failed outright; submitting blind risks a guaranteed
		// wash-trade rejection, so surface the failure.
		return nil, err
	}
	result.Cancelled = cancelled

	result.State = types.StateSubmitting
	req := types.OrderReq{
		Symbol:      decision.Symbol,
		Qty:         decision.Qty,
		Side:        side,
		Type:        "market",
		TimeInForce: "day",
	}
	if decision.Price != nil {
		req.Type = "limit"
		req.LimitPrice = decision.Price
	}

	order, err := c.brokerage.CreateOrder(ctx, req)
	if err != nil {
		result.State = types.StateRejected
		var ee *brokererr.ExecutionError
		if errors.As(err, &ee) {
			result.Reason = fmt.Sprintf("%s: %s", ee.Kind, ee.Message)
		} else {
			result.Reason = err.Error()
		}
		logger.ErrorWithErr(ctx, "Order rejected", err,
			"agent_id", decision.AgentID,
			"symbol", decision.Symbol,
			"side", side,
			"qty", decision.Qty,
		)
		return result, err
	}

	result.State = types.StateFilled
	result.Order = &order

	logger.Trade(ctx, decision.AgentID, decision.Symbol, string(side), decision.Qty,
		order.FilledAvgPrice, order.ID, "confidence", decision.Confidence)

	if c.broadcaster != nil {
		c.broadcaster.Publish(ctx, types.Event{
			ID:         uuid.NewString(),
			Type:       "trade",
			AgentID:    decision.AgentID,
			Symbol:     decision.Symbol,
			Action:     decision.Action,
			Quantity:   decision.Qty,
			Confidence: decision.Confidence,
			Reasoning:  decision.Reasoning,
			RiskLevel:  decision.RiskLevel,
			Timestamp:  time.Now(),
			Source:     "execution",
		})
	}

	return result, nil
}

// resolveConflicts cancels active opposite-side orders for the symbol. A
// single stuck order must not block the others: per-order failures are
// logged as ConflictResolutionError and skipped. Returns the ids for which
// cancellation was issued.
func (c *Coordinator) resolveConflicts(ctx context.Context, symbol string, side types.OrderSide) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "execution.resolveConflicts")
	defer span.End()

	open, err := c.brokerage.ListOpenOrders(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("listing open orders for %s: %w", symbol, err)
	}

	var cancelled []string
	for _, o := range open {
		if o.Side == side || !types.IsActiveOrderStatus(o.Status) {
			continue
		}
		if err := c.brokerage.CancelOrder(ctx, o.ID); err != nil {
			cerr := &brokererr.ConflictResolutionError{OrderID: o.ID, Err: err}
			logger.Warn(ctx, "Conflicting order could not be cancelled, continuing",
				"symbol", symbol, "order_id", o.ID, "error", cerr)
			continue
		}
		logger.Info(ctx, "Conflicting order cancelled",
			"symbol", symbol, "order_id", o.ID, "side", o.Side, "status", o.Status)
		cancelled = append(cancelled, o.ID)
	}

	if len(cancelled) > 0 && c.settleDelay > 0 {
		select {
		case <-time.After(c.settleDelay):
		case <-ctx.Done():
			return cancelled, ctx.Err()
		}
	}

	return cancelled, nil
}

func sideFor(action types.Action) (types.OrderSide, error) {
	switch action {
	case types.ActionBuy:
		return types.SideBuy, nil
	case types.ActionSell:
		return types.SideSell, nil
	default:
		return "", fmt.Errorf("action %s is not executable", action)
	}
}
