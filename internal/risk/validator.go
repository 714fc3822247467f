// Package risk validates synthesized decisions against an agent's limits
// before any capital is committed. A failed check never surfaces as an
// error: it resolves into a quantity adjustment or a forced HOLD, with the
// reasons from every failing check joined into one string.
package risk

import (
	"context"
	"fmt"
	"math"
	"strings"

	"agent-trader/internal/limits"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// Validator runs the five risk checks in fixed order: position size, daily
// risk, drawdown, cash reserve, sector concentration.
type Validator struct{}

func New() *Validator { return &Validator{} }

// Validate checks decision against profile and portfolio. refPrice is the
// latest quote, used when the decision carries no limit price. Approved is
// true iff no check failed; otherwise the caller must use Adjusted, which
// may itself be a forced HOLD.
func (v *Validator) Validate(ctx context.Context, profile limits.AgentProfile,
	decision types.TradingDecision, portfolio types.PortfolioSnapshot, refPrice float64) types.ValidationResult {

	ctx, span := trace.StartSpan(ctx, "risk.Validate")
	defer span.End()

	price := refPrice
	if decision.Price != nil {
		price = *decision.Price
	}

	metrics := v.snapshot(profile, decision, portfolio, price)

	if decision.Action == types.ActionHold {
		return types.ValidationResult{Approved: true, Metrics: metrics}
	}
	if portfolio.TotalValue <= 0 {
		held := forceHold(decision, "portfolio snapshot has no value")
		return types.ValidationResult{Approved: false, Reason: "portfolio snapshot has no value", Adjusted: &held, Metrics: metrics}
	}

	work := decision
	var reasons []string
	fail := func(reason string) {
		reasons = append(reasons, reason)
	}

	// 1. Position size (BUY only): oversize orders are trimmed, not blocked.
	if work.Action == types.ActionBuy && price > 0 {
		positionPct := float64(work.Qty) * price / portfolio.TotalValue
		if positionPct > profile.MaxPositionSize {
			adjQty := int(math.Floor(portfolio.TotalValue * profile.MaxPositionSize / price))
			fail(fmt.Sprintf("position %.1f%% of portfolio exceeds max %.1f%%, quantity adjusted %d -> %d",
				positionPct*100, profile.MaxPositionSize*100, work.Qty, adjQty))
			if adjQty <= 0 {
				work = forceHold(work, "position size limit leaves no tradable quantity")
			} else {
				work.Qty = adjQty
			}
			logger.Risk(ctx, profile.ID, work.Symbol, "POSITION_SIZE_ADJUSTED",
				"position_pct", positionPct, "max_position_size", profile.MaxPositionSize, "adjusted_qty", adjQty)
		}
	}

	// 2. Daily risk: over the cap the agent sits the day out.
	if work.Action != types.ActionHold {
		currentRisk := math.Abs(portfolio.DayChange) / portfolio.TotalValue
		if currentRisk > profile.MaxDailyRisk {
			fail(fmt.Sprintf("daily risk %.2f%% exceeds max %.2f%%, holding",
				currentRisk*100, profile.MaxDailyRisk*100))
			work = forceHold(work, "daily risk limit reached")
			logger.Risk(ctx, profile.ID, work.Symbol, "DAILY_RISK_EXCEEDED",
				"current_risk", currentRisk, "max_daily_risk", profile.MaxDailyRisk)
		}
	}

	// 3. Drawdown: hard stop, no adjustment path.
	if work.Action != types.ActionHold && portfolio.HighWaterMark > 0 {
		drawdown := (portfolio.HighWaterMark - portfolio.TotalValue) / portfolio.HighWaterMark
		if drawdown > profile.MaxDrawdown {
			fail(fmt.Sprintf("drawdown %.2f%% exceeds max %.2f%%, holding",
				drawdown*100, profile.MaxDrawdown*100))
			work = forceHold(work, "drawdown limit reached")
			logger.Risk(ctx, profile.ID, work.Symbol, "DRAWDOWN_EXCEEDED",
				"drawdown", drawdown, "max_drawdown", profile.MaxDrawdown)
		}
	}

	// 4. Cash reserve (BUY only): trim to the largest quantity that keeps
	// the reserve satisfied, or hold when none does.
	if work.Action == types.ActionBuy && price > 0 {
		remaining := portfolio.BuyingPower - float64(work.Qty)*price
		if remaining/portfolio.TotalValue < profile.MinCashReserve {
			maxSpend := portfolio.BuyingPower - profile.MinCashReserve*portfolio.TotalValue
			adjQty := int(math.Floor(maxSpend / price))
			if adjQty <= 0 {
				fail(fmt.Sprintf("buy would leave cash reserve below %.1f%%, holding",
					profile.MinCashReserve*100))
				work = forceHold(work, "cash reserve limit reached")
			} else {
				fail(fmt.Sprintf("buy would leave cash reserve below %.1f%%, quantity adjusted %d -> %d",
					profile.MinCashReserve*100, work.Qty, adjQty))
				work.Qty = adjQty
			}
			logger.Risk(ctx, profile.ID, work.Symbol, "CASH_RESERVE_ADJUSTED",
				"min_cash_reserve", profile.MinCashReserve, "adjusted_qty", adjQty)
		}
	}

	// 5. Sector concentration (BUY only). The static classification below
	// is a stub pending real sector data; the check is deliberately
	// permissive until that integration lands.
	if work.Action == types.ActionBuy {
		_ = sectorOf(work.Symbol)
	}

	result := types.ValidationResult{
		Approved: len(reasons) == 0,
		Reason:   strings.Join(reasons, "; "),
		Metrics:  metrics,
	}
	if !result.Approved {
		adjusted := work
		result.Adjusted = &adjusted
	}
	return result
}

func (v *Validator) snapshot(profile limits.AgentProfile, decision types.TradingDecision,
	portfolio types.PortfolioSnapshot, price float64) types.RiskSnapshot {

	var m types.RiskSnapshot
	if portfolio.TotalValue <= 0 {
		return m
	}
	if decision.Action == types.ActionBuy {
		m.PositionPct = float64(decision.Qty) * price / portfolio.TotalValue
		m.CashAfter = (portfolio.BuyingPower - float64(decision.Qty)*price) / portfolio.TotalValue
	}
	m.CurrentRisk = math.Abs(portfolio.DayChange) / portfolio.TotalValue
	if portfolio.HighWaterMark > 0 {
		m.Drawdown = (portfolio.HighWaterMark - portfolio.TotalValue) / portfolio.HighWaterMark
	}
	return m
}

func forceHold(d types.TradingDecision, note string) types.TradingDecision {
	d.Action = types.ActionHold
	d.Qty = 0
	d.Price = nil
	if note != "" {
		d.Reasoning = d.Reasoning + " | " + note
	}
	return d
}

// sectorOf classifies a symbol into a coarse sector. Static table only;
// unknown symbols map to "other".
func sectorOf(symbol string) string {
	switch symbol {
	case "AAPL", "MSFT", "GOOGL", "NVDA", "META", "AMD", "CRM", "INTC":
		return "technology"
	case "JPM", "BAC", "GS", "V", "MA":
		return "financials"
	case "XOM", "CVX", "COP":
		return "energy"
	case "JNJ", "PFE", "UNH", "LLY":
		return "healthcare"
	case "TSLA", "AMZN", "HD", "NKE":
		return "consumer"
	default:
		return "other"
	}
}
