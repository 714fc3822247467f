// Package synth turns market, news and portfolio signals into scored
// trading decisions per agent personality.
package synth

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"agent-trader/internal/interfaces"
	"agent-trader/internal/limits"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

// Signal weights and the portfolio factor values.
const (
	marketWeight      = 0.4
	newsWeight        = 0.4
	portfolioCanTrade = 0.2
	portfolioBlocked  = -0.5
)

// tierParams are the per-tier action thresholds and confidence constants.
type tierParams struct {
	buyAbove        float64
	sellBelow       float64
	buyNeedsCapital bool
	confBase        float64
	confSlope       float64
	confCap         float64
}

var tiers = map[types.RiskTier]tierParams{
	// conservative
	types.TierLow: {buyAbove: 0.3, sellBelow: -0.4, buyNeedsCapital: true, confBase: 0.45, confSlope: 1.2, confCap: 0.90},
	// balanced
	types.TierMedium: {buyAbove: 0.2, sellBelow: -0.3, confBase: 0.50, confSlope: 1.3, confCap: 0.95},
	// aggressive
	types.TierHigh: {buyAbove: 0.1, sellBelow: -0.2, confBase: 0.55, confSlope: 1.4, confCap: 0.98},
}

// Synthesizer scores signals into decisions. The random source used for
// symbol selection is injected so tests are deterministic.
type Synthesizer struct {
	mu       sync.Mutex
	rng      *rand.Rand
	narrator interfaces.Narrator
}

// New creates a Synthesizer. narrator may be nil; the heuristic reasoning
// string is used whenever narration is absent or fails.
func New(rng *rand.Rand, narrator interfaces.Narrator) *Synthesizer {
	return &Synthesizer{rng: rng, narrator: narrator}
}

// PickSymbol draws a symbol from the agent's candidate set.
func (s *Synthesizer) PickSymbol(profile limits.AgentProfile) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return profile.Symbols[s.rng.Intn(len(profile.Symbols))]
}

// Synthesize produces a trading decision for one symbol. The confidence
// gate runs last: below the agent's minimum the action is always downgraded
// to HOLD, no matter how strong the raw score was.
func (s *Synthesizer) Synthesize(ctx context.Context, profile limits.AgentProfile, symbol string,
	market types.MarketSignal, news types.NewsSignal, portfolio types.PortfolioSnapshot) types.TradingDecision {

	ctx, span := trace.StartSpan(ctx, "synth.Synthesize")
	defer span.End()

	params, ok := tiers[profile.RiskTolerance]
	if !ok {
		params = tiers[types.TierMedium]
	}

	canTrade := portfolio.BuyingPower > portfolio.TotalValue*profile.MaxPositionSize

	marketFactor := market.Score * marketWeight
	newsFactor := news.Score * newsWeight
	portfolioFactor := portfolioBlocked
	if canTrade {
		portfolioFactor = portfolioCanTrade
	}
	totalScore := marketFactor + newsFactor + portfolioFactor

	action := types.ActionHold
	switch {
	case totalScore > params.buyAbove && (!params.buyNeedsCapital || canTrade):
		action = types.ActionBuy
	case totalScore < params.sellBelow:
		action = types.ActionSell
	}

	confidence := clamp(params.confBase+abs(totalScore)*params.confSlope, 0, params.confCap)

	reasoning := fmt.Sprintf(
		"market %.2f (%s/%s vol), news %.2f (%s), portfolio %.2f => score %.2f",
		marketFactor, market.Trend, market.Volatility, newsFactor, news.Sentiment,
		portfolioFactor, totalScore,
	)

	if s.narrator != nil && action != types.ActionHold {
		if text, err := s.narrator.Narrate(ctx, profile.Personality, symbol, action, market, news); err == nil && text != "" {
			reasoning = text
		} else if err != nil {
			logger.Debug(ctx, "Narrator unavailable, using heuristic reasoning",
				"agent_id", profile.ID, "symbol", symbol, "error", err)
		}
	}

	if confidence < profile.MinConfidence && action != types.ActionHold {
		reasoning += fmt.Sprintf("; confidence %.2f below agent minimum %.2f, downgraded to HOLD",
			confidence, profile.MinConfidence)
		action = types.ActionHold
	}

	decision := types.TradingDecision{
		AgentID:    profile.ID,
		Symbol:     symbol,
		Action:     action,
		Confidence: confidence,
		Reasoning:  reasoning,
		RiskLevel:  riskLevel(profile.RiskTolerance, market.Volatility),
	}

	logger.Decision(ctx, profile.ID, symbol, string(action), confidence, reasoning,
		"total_score", totalScore, "can_trade", canTrade)

	return decision
}

func riskLevel(tier types.RiskTier, volatility string) string {
	switch {
	case tier == types.TierHigh || volatility == "high":
		return "high"
	case tier == types.TierLow && volatility != "medium":
		return "low"
	default:
		return "medium"
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
