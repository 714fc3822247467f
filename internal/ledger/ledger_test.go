package ledger

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-trader/internal/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(t.TempDir())
	require.NoError(t, err)
	return s
}

func decision(action types.Action) types.TradingDecision {
	return types.TradingDecision{
		AgentID:    "test-agent",
		Symbol:     "AAPL",
		Action:     action,
		Qty:        10,
		Confidence: 0.7,
		Reasoning:  "test",
	}
}

func TestProfitAndLossFormula(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionBuy), types.PortfolioSnapshot{TotalValue: 100000}, "sess")
	require.NoError(t, err)

	// Entry 100, exit 110, qty 10, fees 1: P&L 99, invested 1000,
	// return 9.9%, risk 9.9%.
	err = s.UpdateOutcome(ctx, "test-agent", id, types.TradeOutcome{
		Executed: true, OrderID: "o1", EntryPrice: 100, ExitPrice: 110, Qty: 10, Fees: 1,
	})
	require.NoError(t, err)

	view := s.AgentPerformance("test-agent", TimeframeAll)
	require.Len(t, view.Decisions, 1)
	perf := view.Decisions[0].Performance
	require.NotNil(t, perf)

	assert.InDelta(t, 99.0, perf.ProfitLoss, 1e-9)
	assert.InDelta(t, 1000.0, perf.Invested, 1e-9)
	assert.InDelta(t, 9.9, perf.ReturnPct, 1e-9)
	assert.InDelta(t, 9.9, perf.Risk, 1e-9)
}

// The same formula applies to SELL outcomes; a SELL filled above its
// eventual quote therefore books as a gain with the same sign convention.
func TestSellUsesSameFormula(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionSell), types.PortfolioSnapshot{TotalValue: 100000}, "sess")
	require.NoError(t, err)

	err = s.UpdateOutcome(ctx, "test-agent", id, types.TradeOutcome{
		Executed: true, OrderID: "o1", EntryPrice: 100, ExitPrice: 90, Qty: 10, Fees: 0,
	})
	require.NoError(t, err)

	view := s.AgentPerformance("test-agent", TimeframeAll)
	assert.InDelta(t, -100.0, view.Decisions[0].Performance.ProfitLoss, 1e-9)
}

func TestNonExecutedOutcomeLeavesCountersUntouched(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionBuy), types.PortfolioSnapshot{}, "sess")
	require.NoError(t, err)

	err = s.UpdateOutcome(ctx, "test-agent", id, types.TradeOutcome{Executed: false, Error: "rejected"})
	require.NoError(t, err)

	view := s.AgentPerformance("test-agent", TimeframeAll)
	assert.Equal(t, 1, view.TotalDecisions)
	assert.Equal(t, 0, view.Executed)
	assert.Equal(t, 0, view.Winners)
	assert.Zero(t, view.TotalReturn)
	assert.Zero(t, view.Risk.WinRate)
}

func TestOutcomeResolvesAtMostOnce(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	id, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionBuy), types.PortfolioSnapshot{}, "sess")
	require.NoError(t, err)

	outcome := types.TradeOutcome{Executed: true, EntryPrice: 100, ExitPrice: 110, Qty: 10}
	require.NoError(t, s.UpdateOutcome(ctx, "test-agent", id, outcome))

	err = s.UpdateOutcome(ctx, "test-agent", id, outcome)
	assert.Error(t, err, "second outcome for the same decision must fail")
}

func TestUnknownDecisionRejected(t *testing.T) {
	s := newTestService(t)
	err := s.UpdateOutcome(context.Background(), "test-agent", "no-such-id", types.TradeOutcome{Executed: true})
	assert.Error(t, err)
}

func TestWinRateBounds(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	exits := []float64{110, 90, 105, 95, 120}
	for _, exit := range exits {
		id, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionBuy), types.PortfolioSnapshot{}, "sess")
		require.NoError(t, err)
		require.NoError(t, s.UpdateOutcome(ctx, "test-agent", id, types.TradeOutcome{
			Executed: true, EntryPrice: 100, ExitPrice: exit, Qty: 10,
		}))
	}

	view := s.AgentPerformance("test-agent", TimeframeAll)
	assert.GreaterOrEqual(t, view.Risk.WinRate, 0.0)
	assert.LessOrEqual(t, view.Risk.WinRate, 100.0)
	// 3 of 5 exits above entry.
	assert.InDelta(t, 60.0, view.Risk.WinRate, 1e-9)
}

func TestZeroVolatilitySharpeIsZero(t *testing.T) {
	m := computeRiskMetrics([]float64{5, 5, 5}, 3)
	assert.Zero(t, m.Volatility)
	assert.Zero(t, m.SharpeRatio)
	assert.InDelta(t, 100.0, m.WinRate, 1e-9)
}

func TestSharpeUsesRiskFreeRate(t *testing.T) {
	// mean 6, population stddev 2: sharpe (6-2)/2 = 2.
	m := computeRiskMetrics([]float64{4, 8}, 2)
	assert.InDelta(t, 2.0, m.SharpeRatio, 1e-9)
}

func TestMaxDrawdownOverCumulativeReturns(t *testing.T) {
	// Cumulative: 10, 5, 12, 4 -> peak 12, trough 4, drawdown 8.
	dd := maxDrawdown([]float64{10, -5, 7, -8})
	assert.InDelta(t, 8.0, dd, 1e-9)

	assert.Zero(t, maxDrawdown(nil))
	assert.Zero(t, maxDrawdown([]float64{1, 2, 3}))
}

func TestReplayRestoresState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewService(dir)
	require.NoError(t, err)

	id, err := s1.RecordDecision(ctx, "test-agent", decision(types.ActionBuy), types.PortfolioSnapshot{TotalValue: 100000}, "sess")
	require.NoError(t, err)
	require.NoError(t, s1.UpdateOutcome(ctx, "test-agent", id, types.TradeOutcome{
		Executed: true, EntryPrice: 100, ExitPrice: 110, Qty: 10, Fees: 1,
	}))
	before := s1.AgentPerformance("test-agent", TimeframeAll)

	s2, err := NewService(dir)
	require.NoError(t, err)
	after := s2.AgentPerformance("test-agent", TimeframeAll)

	assert.Equal(t, before.TotalDecisions, after.TotalDecisions)
	assert.Equal(t, before.Executed, after.Executed)
	assert.InDelta(t, before.TotalReturn, after.TotalReturn, 1e-9)
	assert.InDelta(t, before.Risk.WinRate, after.Risk.WinRate, 1e-9)
	require.Len(t, after.Decisions, 1)
	assert.Equal(t, id, after.Decisions[0].ID)
}

func TestTimeframeWindow(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	// One old decision, one fresh one.
	s.now = func() time.Time { return time.Now().AddDate(0, 0, -10) }
	_, err := s.RecordDecision(ctx, "test-agent", decision(types.ActionHold), types.PortfolioSnapshot{}, "sess")
	require.NoError(t, err)

	s.now = time.Now
	_, err = s.RecordDecision(ctx, "test-agent", decision(types.ActionHold), types.PortfolioSnapshot{}, "sess")
	require.NoError(t, err)

	assert.Equal(t, 2, s.AgentPerformance("test-agent", TimeframeAll).TotalDecisions)
	assert.Equal(t, 1, s.AgentPerformance("test-agent", TimeframeWeek).TotalDecisions)
}

func TestLeaderboardOrdering(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	record := func(agentID string, exit float64) {
		d := decision(types.ActionBuy)
		d.AgentID = agentID
		id, err := s.RecordDecision(ctx, agentID, d, types.PortfolioSnapshot{}, "sess")
		require.NoError(t, err)
		require.NoError(t, s.UpdateOutcome(ctx, agentID, id, types.TradeOutcome{
			Executed: true, EntryPrice: 100, ExitPrice: exit, Qty: 10,
		}))
	}

	record("winner", 120)
	record("loser", 80)

	entries := s.Leaderboard(TimeframeAll, MetricTotalReturn)
	require.Len(t, entries, 2)
	assert.Equal(t, "winner", entries[0].AgentID)
	assert.Equal(t, "loser", entries[1].AgentID)
	assert.Greater(t, entries[0].TotalReturn, entries[1].TotalReturn)
}

func TestTornLogLineSkipped(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := NewService(dir)
	require.NoError(t, err)
	_, err = s1.RecordDecision(ctx, "test-agent", decision(types.ActionHold), types.PortfolioSnapshot{}, "sess")
	require.NoError(t, err)

	// Simulate a torn final write.
	f, err := os.OpenFile(s1.store.path("test-agent"), os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"kind":"decision","dec`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	s2, err := NewService(dir)
	require.NoError(t, err)
	assert.Equal(t, 1, s2.AgentPerformance("test-agent", TimeframeAll).TotalDecisions)
}
