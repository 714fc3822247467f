// Package engine runs the full decision pipeline for one agent:
// synthesize, validate, execute, record. Each stage failure is scoped to
// its stage; a HOLD decision is always a safe terminal outcome.
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-trader/internal/execution"
	"agent-trader/internal/interfaces"
	"agent-trader/internal/ledger"
	"agent-trader/internal/limits"
	"agent-trader/internal/logger"
	"agent-trader/internal/risk"
	"agent-trader/internal/synth"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

type Engine struct {
	registry    *limits.Registry
	signals     interfaces.SignalProvider
	synthesizer *synth.Synthesizer
	validator   *risk.Validator
	coordinator *execution.Coordinator
	brokerage   interfaces.Brokerage
	ledger      *ledger.Service
	broadcaster interfaces.Broadcaster
	sessionID   string

	hwmMu sync.Mutex
	hwm   map[string]float64 // per-agent high-water mark, session scoped
}

type Params struct {
	Registry    *limits.Registry
	Signals     interfaces.SignalProvider
	Synthesizer *synth.Synthesizer
	Validator   *risk.Validator
	Coordinator *execution.Coordinator
	Brokerage   interfaces.Brokerage
	Ledger      *ledger.Service
	Broadcaster interfaces.Broadcaster
}

func New(p Params) *Engine {
	return &Engine{
		registry:    p.Registry,
		signals:     p.Signals,
		synthesizer: p.Synthesizer,
		validator:   p.Validator,
		coordinator: p.Coordinator,
		brokerage:   p.Brokerage,
		ledger:      p.Ledger,
		broadcaster: p.Broadcaster,
		sessionID:   uuid.NewString(),
		hwm:         map[string]float64{},
	}
}

// Cycle runs one full pipeline pass for agentID.
func (e *Engine) Cycle(ctx context.Context, agentID string) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle")
	defer span.End()

	profile, err := e.registry.Get(agentID)
	if err != nil {
		return nil, err
	}

	portfolio, err := e.portfolio(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("portfolio snapshot for agent %s: %w", agentID, err)
	}

	symbol := e.synthesizer.PickSymbol(profile)

	market, err := e.signals.MarketSignal(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("market signal for %s: %w", symbol, err)
	}
	news, err := e.signals.NewsSignal(ctx, symbol)
	if err != nil {
		// News is the softer signal; a dead provider degrades to neutral
		// rather than skipping the cycle.
		logger.Warn(ctx, "News signal unavailable, using neutral",
			"agent_id", agentID, "symbol", symbol, "error", err)
		news = types.NewsSignal{Sentiment: "neutral"}
	}

	quote, err := e.brokerage.LatestQuote(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("quote for %s: %w", symbol, err)
	}

	decision := e.synthesizer.Synthesize(ctx, profile, symbol, market, news, portfolio)
	if decision.Action != types.ActionHold {
		decision.Qty = e.sizeOrder(profile, portfolio, decision, quote)
		if decision.Qty <= 0 {
			decision.Action = types.ActionHold
			decision.Reasoning += "; no affordable quantity at current quote"
		}
	}

	e.publish(ctx, "decision", decision)

	decisionID, err := e.ledger.RecordDecision(ctx, agentID, decision, portfolio, e.sessionID)
	if err != nil {
		return nil, err
	}

	result := &types.CycleResult{
		AgentID:    agentID,
		DecisionID: decisionID,
		Decision:   decision,
	}

	if decision.Action == types.ActionHold {
		return result, nil
	}

	validation := e.validator.Validate(ctx, profile, decision, portfolio, quote)
	result.Validation = &validation

	final := decision
	if !validation.Approved {
		if validation.Adjusted == nil {
			return result, fmt.Errorf("validation rejected decision %s with no adjustment", decisionID)
		}
		final = *validation.Adjusted
	}

	if final.Action == types.ActionHold {
		outcome := types.TradeOutcome{Executed: false, Error: validation.Reason}
		result.Outcome = &outcome
		if err := e.ledger.UpdateOutcome(ctx, agentID, decisionID, outcome); err != nil {
			logger.ErrorWithErr(ctx, "Outcome update failed", err,
				"agent_id", agentID, "decision_id", decisionID)
		}
		return result, nil
	}

	exec, execErr := e.coordinator.Execute(ctx, final)
	result.Execution = exec

	outcome := e.outcomeFor(ctx, final, exec, execErr, quote)
	result.Outcome = &outcome
	if err := e.ledger.UpdateOutcome(ctx, agentID, decisionID, outcome); err != nil {
		logger.ErrorWithErr(ctx, "Outcome update failed", err,
			"agent_id", agentID, "decision_id", decisionID)
	}

	if execErr != nil {
		return result, execErr
	}
	return result, nil
}

// portfolio builds the snapshot used by synthesis and validation. The
// high-water mark is session scoped: it starts at the first observed total
// value and only ratchets up.
func (e *Engine) portfolio(ctx context.Context, agentID string) (types.PortfolioSnapshot, error) {
	account, err := e.brokerage.Account(ctx)
	if err != nil {
		return types.PortfolioSnapshot{}, err
	}

	e.hwmMu.Lock()
	if account.TotalValue > e.hwm[agentID] {
		e.hwm[agentID] = account.TotalValue
	}
	hwm := e.hwm[agentID]
	e.hwmMu.Unlock()

	return types.PortfolioSnapshot{
		TotalValue:    account.TotalValue,
		BuyingPower:   account.BuyingPower,
		DayChange:     account.DayChange,
		HighWaterMark: hwm,
	}, nil
}

// sizeOrder scales the agent's per-position budget by decision confidence.
// The risk validator still has the final say on the returned quantity.
func (e *Engine) sizeOrder(profile limits.AgentProfile, portfolio types.PortfolioSnapshot,
	decision types.TradingDecision, quote float64) int {

	if quote <= 0 {
		return 0
	}
	budget := portfolio.TotalValue * profile.MaxPositionSize * decision.Confidence
	if decision.Action == types.ActionBuy && budget > portfolio.BuyingPower {
		budget = portfolio.BuyingPower
	}
	return int(math.Floor(budget / quote))
}

func (e *Engine) outcomeFor(ctx context.Context, decision types.TradingDecision,
	exec *types.ExecutionResult, execErr error, quote float64) types.TradeOutcome {

	if execErr != nil || exec == nil || exec.State != types.StateFilled || exec.Order == nil {
		outcome := types.TradeOutcome{Executed: false}
		if execErr != nil {
			outcome.Error = execErr.Error()
		} else if exec != nil {
			outcome.Error = exec.Reason
		}
		return outcome
	}

	order := exec.Order
	entry := order.FilledAvgPrice
	if entry <= 0 {
		entry = quote
	}
	exit, err := e.brokerage.LatestQuote(ctx, order.Symbol)
	if err != nil || exit <= 0 {
		exit = entry
	}

	return types.TradeOutcome{
		Executed:   true,
		OrderID:    order.ID,
		EntryPrice: entry,
		ExitPrice:  exit,
		Qty:        decision.Qty,
	}
}

func (e *Engine) publish(ctx context.Context, eventType string, decision types.TradingDecision) {
	if e.broadcaster == nil {
		return
	}
	e.broadcaster.Publish(ctx, types.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		AgentID:    decision.AgentID,
		Symbol:     decision.Symbol,
		Action:     decision.Action,
		Quantity:   decision.Qty,
		Confidence: decision.Confidence,
		Reasoning:  decision.Reasoning,
		RiskLevel:  decision.RiskLevel,
		Timestamp:  time.Now(),
		Source:     "engine",
	})
}
