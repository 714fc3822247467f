package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"agent-trader/internal/execution"
	"agent-trader/internal/ledger"
	"agent-trader/internal/limits"
	"agent-trader/internal/risk"
	"agent-trader/internal/store"
	"agent-trader/internal/synth"
	"agent-trader/internal/types"
)

type fixedSignals struct {
	market types.MarketSignal
	news   types.NewsSignal
}

func (f *fixedSignals) MarketSignal(ctx context.Context, symbol string) (types.MarketSignal, error) {
	return f.market, nil
}

func (f *fixedSignals) NewsSignal(ctx context.Context, symbol string) (types.NewsSignal, error) {
	return f.news, nil
}

type stubBrokerage struct {
	account types.Account
	quote   float64
	created []types.OrderReq
}

func (b *stubBrokerage) CreateOrder(ctx context.Context, req types.OrderReq) (types.Order, error) {
	b.created = append(b.created, req)
	return types.Order{ID: "o1", Symbol: req.Symbol, Side: req.Side, Qty: req.Qty,
		Type: req.Type, Status: "filled", FilledAvgPrice: b.quote, CreatedAt: time.Now()}, nil
}

func (b *stubBrokerage) ListOpenOrders(ctx context.Context, symbol string) ([]types.Order, error) {
	return nil, nil
}

func (b *stubBrokerage) CancelOrder(ctx context.Context, orderID string) error { return nil }

func (b *stubBrokerage) Account(ctx context.Context) (types.Account, error) {
	return b.account, nil
}

func (b *stubBrokerage) LatestQuote(ctx context.Context, symbol string) (float64, error) {
	return b.quote, nil
}

func newTestEngine(t *testing.T, brk *stubBrokerage, signals *fixedSignals, agent store.AgentConfig) *Engine {
	t.Helper()

	ledgerSvc, err := ledger.NewService(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return New(Params{
		Registry:    limits.NewRegistry([]store.AgentConfig{agent}),
		Signals:     signals,
		Synthesizer: synth.New(rand.New(rand.NewSource(1)), nil),
		Validator:   risk.New(),
		Coordinator: execution.New(brk, nil, 0),
		Brokerage:   brk,
		Ledger:      ledgerSvc,
	})
}

func testAgent() store.AgentConfig {
	return store.AgentConfig{
		ID:              "a1",
		RiskTolerance:   "high",
		MaxPositionSize: 0.05,
		MaxDailyRisk:    0.10,
		MaxDrawdown:     0.50,
		MinCashReserve:  0.05,
		MinConfidence:   0.1,
		Symbols:         []string{"AAPL"},
	}
}

func TestCycleExecutesBuyEndToEnd(t *testing.T) {
	brk := &stubBrokerage{account: types.Account{TotalValue: 100000, BuyingPower: 50000}, quote: 100}
	signals := &fixedSignals{
		market: types.MarketSignal{Score: 0.8, Trend: "bullish", Volatility: "low"},
		news:   types.NewsSignal{Score: 0.8, Sentiment: "positive"},
	}
	e := newTestEngine(t, brk, signals, testAgent())

	result, err := e.Cycle(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if result.Decision.Action != types.ActionBuy {
		t.Fatalf("Expected BUY, got %s", result.Decision.Action)
	}
	if len(brk.created) != 1 {
		t.Fatalf("Expected one order, got %d", len(brk.created))
	}
	if result.Execution == nil || result.Execution.State != types.StateFilled {
		t.Error("Expected FILLED execution state")
	}
	if result.Outcome == nil || !result.Outcome.Executed {
		t.Fatal("Expected executed outcome")
	}
	if result.Outcome.EntryPrice != 100 {
		t.Errorf("Expected entry price 100, got %f", result.Outcome.EntryPrice)
	}

	view := e.ledger.AgentPerformance("a1", ledger.TimeframeAll)
	if view.TotalDecisions != 1 || view.Executed != 1 {
		t.Errorf("Expected ledger decisions=1 executed=1, got %d/%d", view.TotalDecisions, view.Executed)
	}
}

func TestCycleHoldShortCircuits(t *testing.T) {
	brk := &stubBrokerage{account: types.Account{TotalValue: 100000, BuyingPower: 50000}, quote: 100}
	signals := &fixedSignals{
		market: types.MarketSignal{Score: 0, Trend: "neutral", Volatility: "medium"},
		news:   types.NewsSignal{Score: -0.1, Sentiment: "neutral"},
	}
	agent := testAgent()
	agent.RiskTolerance = "low"
	e := newTestEngine(t, brk, signals, agent)

	result, err := e.Cycle(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if result.Decision.Action != types.ActionHold {
		t.Fatalf("Expected HOLD, got %s", result.Decision.Action)
	}
	if result.Validation != nil {
		t.Error("Expected no validation for a HOLD decision")
	}
	if len(brk.created) != 0 {
		t.Error("Expected no order for a HOLD decision")
	}

	// The HOLD is still on the record.
	view := e.ledger.AgentPerformance("a1", ledger.TimeframeAll)
	if view.TotalDecisions != 1 {
		t.Errorf("Expected decision recorded, got %d", view.TotalDecisions)
	}
}

func TestCycleForcedHoldRecordsNonExecutedOutcome(t *testing.T) {
	brk := &stubBrokerage{
		// 8% daily move against a 2% cap below.
		account: types.Account{TotalValue: 100000, BuyingPower: 50000, DayChange: -8000},
		quote:   100,
	}
	signals := &fixedSignals{
		market: types.MarketSignal{Score: 0.8, Trend: "bullish", Volatility: "low"},
		news:   types.NewsSignal{Score: 0.8, Sentiment: "positive"},
	}
	agent := testAgent()
	agent.MaxDailyRisk = 0.02
	e := newTestEngine(t, brk, signals, agent)

	result, err := e.Cycle(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Cycle failed: %v", err)
	}

	if result.Validation == nil || result.Validation.Approved {
		t.Fatal("Expected validation failure")
	}
	if len(brk.created) != 0 {
		t.Error("Expected no order after forced HOLD")
	}
	if result.Outcome == nil || result.Outcome.Executed {
		t.Fatal("Expected non-executed outcome")
	}
	if result.Outcome.Error == "" {
		t.Error("Expected validation reason in the outcome")
	}

	view := e.ledger.AgentPerformance("a1", ledger.TimeframeAll)
	if view.Executed != 0 {
		t.Errorf("Expected no executed trades, got %d", view.Executed)
	}
}

func TestCycleUnknownAgent(t *testing.T) {
	brk := &stubBrokerage{account: types.Account{TotalValue: 100000, BuyingPower: 50000}, quote: 100}
	e := newTestEngine(t, brk, &fixedSignals{}, testAgent())

	if _, err := e.Cycle(context.Background(), "ghost"); err == nil {
		t.Fatal("Expected error for unknown agent")
	}
}

func TestHighWaterMarkRatchets(t *testing.T) {
	brk := &stubBrokerage{account: types.Account{TotalValue: 100000, BuyingPower: 50000}, quote: 100}
	e := newTestEngine(t, brk, &fixedSignals{
		market: types.MarketSignal{Trend: "neutral", Volatility: "medium"},
		news:   types.NewsSignal{Sentiment: "neutral"},
	}, testAgent())

	ctx := context.Background()
	p1, err := e.portfolio(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	if p1.HighWaterMark != 100000 {
		t.Errorf("Expected initial high-water mark 100000, got %f", p1.HighWaterMark)
	}

	brk.account.TotalValue = 90000
	p2, _ := e.portfolio(ctx, "a1")
	if p2.HighWaterMark != 100000 {
		t.Errorf("Expected high-water mark to hold at 100000, got %f", p2.HighWaterMark)
	}

	brk.account.TotalValue = 120000
	p3, _ := e.portfolio(ctx, "a1")
	if p3.HighWaterMark != 120000 {
		t.Errorf("Expected high-water mark to ratchet to 120000, got %f", p3.HighWaterMark)
	}
}
