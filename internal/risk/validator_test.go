package risk

import (
	"context"
	"strings"
	"testing"

	"agent-trader/internal/limits"
	"agent-trader/internal/types"
)

func testProfile() limits.AgentProfile {
	return limits.AgentProfile{
		ID:              "test-agent",
		RiskTolerance:   types.TierMedium,
		MaxPositionSize: 0.05,
		MaxDailyRisk:    0.03,
		MaxDrawdown:     0.10,
		MinCashReserve:  0.10,
	}
}

func buyDecision(qty int) types.TradingDecision {
	return types.TradingDecision{
		AgentID: "test-agent",
		Symbol:  "AAPL",
		Action:  types.ActionBuy,
		Qty:     qty,
	}
}

func calmPortfolio() types.PortfolioSnapshot {
	return types.PortfolioSnapshot{
		TotalValue:    100000,
		BuyingPower:   60000,
		DayChange:     0,
		HighWaterMark: 100000,
	}
}

func TestHoldIsAlwaysApproved(t *testing.T) {
	v := New()
	d := types.TradingDecision{AgentID: "test-agent", Symbol: "AAPL", Action: types.ActionHold}
	// Even against a pathological portfolio.
	res := v.Validate(context.Background(), testProfile(), d, types.PortfolioSnapshot{}, 0)
	if !res.Approved {
		t.Errorf("Expected HOLD approved, got reason %q", res.Reason)
	}
}

func TestPositionSizeAdjustment(t *testing.T) {
	v := New()
	// 200 * 100 = 20000 notional is 20% of a 100k portfolio against a 5%
	// cap: quantity must come back as floor(100000*0.05/100) = 50.
	res := v.Validate(context.Background(), testProfile(), buyDecision(200), calmPortfolio(), 100)

	if res.Approved {
		t.Fatal("Expected oversize position to fail validation")
	}
	if res.Adjusted == nil {
		t.Fatal("Expected an adjusted decision")
	}
	if res.Adjusted.Action != types.ActionBuy {
		t.Errorf("Expected adjusted decision to stay BUY, got %s", res.Adjusted.Action)
	}
	if res.Adjusted.Qty != 50 {
		t.Errorf("Expected adjusted qty 50, got %d", res.Adjusted.Qty)
	}
	if !strings.Contains(res.Reason, "position") {
		t.Errorf("Expected position size reason, got %q", res.Reason)
	}
}

func TestAdjustedPositionRespectsCap(t *testing.T) {
	v := New()
	profile := testProfile()
	portfolio := calmPortfolio()

	for _, qty := range []int{51, 100, 1000, 100000} {
		res := v.Validate(context.Background(), profile, buyDecision(qty), portfolio, 99.5)
		adj := res.Adjusted
		if adj == nil || adj.Action != types.ActionBuy {
			continue
		}
		notional := float64(adj.Qty) * 99.5
		if notional/portfolio.TotalValue > profile.MaxPositionSize+1e-9 {
			t.Errorf("Adjusted qty %d still exceeds position cap", adj.Qty)
		}
	}
}

func TestDailyRiskForcesHold(t *testing.T) {
	v := New()
	portfolio := calmPortfolio()
	portfolio.DayChange = -4000 // 4% loss against a 3% daily cap

	res := v.Validate(context.Background(), testProfile(), buyDecision(10), portfolio, 100)

	if res.Approved {
		t.Fatal("Expected daily risk breach to fail validation")
	}
	if res.Adjusted == nil || res.Adjusted.Action != types.ActionHold {
		t.Error("Expected forced HOLD on daily risk breach")
	}
}

func TestDrawdownForcesHold(t *testing.T) {
	v := New()
	portfolio := calmPortfolio()
	portfolio.HighWaterMark = 120000 // 16.7% below peak against a 10% cap

	res := v.Validate(context.Background(), testProfile(), buyDecision(10), portfolio, 100)

	if res.Approved {
		t.Fatal("Expected drawdown breach to fail validation")
	}
	if res.Adjusted == nil || res.Adjusted.Action != types.ActionHold {
		t.Error("Expected forced HOLD on drawdown breach")
	}
	if !strings.Contains(res.Reason, "drawdown") {
		t.Errorf("Expected drawdown reason, got %q", res.Reason)
	}
}

func TestCashReserveAdjustment(t *testing.T) {
	v := New()
	profile := testProfile()
	profile.MaxPositionSize = 0.50 // keep check 1 quiet
	portfolio := calmPortfolio()
	portfolio.BuyingPower = 12000

	// 40 * 300 = 12000 would drain buying power to zero against a 10%
	// reserve. Max spend is 12000 - 10000 = 2000, so qty 6 at 300.
	res := v.Validate(context.Background(), profile, buyDecision(40), portfolio, 300)

	if res.Approved {
		t.Fatal("Expected cash reserve breach to fail validation")
	}
	if res.Adjusted == nil {
		t.Fatal("Expected an adjusted decision")
	}
	if res.Adjusted.Qty != 6 {
		t.Errorf("Expected adjusted qty 6, got %d", res.Adjusted.Qty)
	}
	remaining := portfolio.BuyingPower - float64(res.Adjusted.Qty)*300
	if remaining/portfolio.TotalValue < profile.MinCashReserve-1e-9 {
		t.Errorf("Adjusted buy still violates cash reserve, remaining %f", remaining)
	}
}

func TestCashReserveForcesHoldWhenNothingAffordable(t *testing.T) {
	v := New()
	profile := testProfile()
	profile.MaxPositionSize = 0.50
	portfolio := calmPortfolio()
	portfolio.BuyingPower = 10000 // exactly the reserve, zero headroom

	res := v.Validate(context.Background(), profile, buyDecision(5), portfolio, 300)

	if res.Approved {
		t.Fatal("Expected validation failure")
	}
	if res.Adjusted == nil || res.Adjusted.Action != types.ActionHold {
		t.Error("Expected forced HOLD when no quantity keeps the reserve")
	}
}

func TestMultipleReasonsJoined(t *testing.T) {
	v := New()
	portfolio := calmPortfolio()
	portfolio.DayChange = -4000
	portfolio.HighWaterMark = 120000

	// Oversize position plus daily risk breach: both checks run before
	// the forced HOLD short-circuits the rest.
	res := v.Validate(context.Background(), testProfile(), buyDecision(200), portfolio, 100)

	if res.Approved {
		t.Fatal("Expected validation failure")
	}
	if !strings.Contains(res.Reason, "; ") {
		t.Errorf("Expected multiple reasons joined with '; ', got %q", res.Reason)
	}
}

func TestSellUnaffectedByBuyOnlyChecks(t *testing.T) {
	v := New()
	d := types.TradingDecision{AgentID: "test-agent", Symbol: "AAPL", Action: types.ActionSell, Qty: 500}

	res := v.Validate(context.Background(), testProfile(), d, calmPortfolio(), 100)

	if !res.Approved {
		t.Errorf("Expected SELL approved past BUY-only checks, got reason %q", res.Reason)
	}
}

func TestEmptyPortfolioForcesHold(t *testing.T) {
	v := New()
	res := v.Validate(context.Background(), testProfile(), buyDecision(10), types.PortfolioSnapshot{}, 100)

	if res.Approved {
		t.Fatal("Expected validation failure on empty portfolio")
	}
	if res.Adjusted == nil || res.Adjusted.Action != types.ActionHold {
		t.Error("Expected forced HOLD on empty portfolio")
	}
}

func TestMetricsPopulated(t *testing.T) {
	v := New()
	portfolio := calmPortfolio()
	portfolio.DayChange = -1000
	portfolio.HighWaterMark = 110000

	res := v.Validate(context.Background(), testProfile(), buyDecision(10), portfolio, 100)

	m := res.Metrics
	if m.PositionPct != 1000.0/100000 {
		t.Errorf("Expected position pct 0.01, got %f", m.PositionPct)
	}
	if m.CurrentRisk != 0.01 {
		t.Errorf("Expected current risk 0.01, got %f", m.CurrentRisk)
	}
	if m.Drawdown <= 0 {
		t.Errorf("Expected positive drawdown, got %f", m.Drawdown)
	}
}
