package ledger

import (
	"time"

	"agent-trader/internal/types"
)

// Timeframe selects the window for read-only projections.
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
	TimeframeAll   Timeframe = "all"
)

// TradePerformance is the computed result of one executed trade.
type TradePerformance struct {
	ProfitLoss float64 `json:"profit_loss"`
	Invested   float64 `json:"invested"`
	ReturnPct  float64 `json:"return_pct"`
	Risk       float64 `json:"risk"`
}

// RiskMetrics are the rolling risk-adjusted metrics over executed trades.
// MaxDrawdown is measured over the cumulative sum of per-trade return
// percentages, not over account equity; a simplified definition, distinct
// from a true equity-curve drawdown.
type RiskMetrics struct {
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Volatility  float64 `json:"volatility"`
	WinRate     float64 `json:"win_rate"`
}

// DecisionRecord is one decision and, eventually, its outcome. Created
// once, its outcome set exactly once, never deleted.
type DecisionRecord struct {
	ID          string                  `json:"id"`
	Timestamp   time.Time               `json:"timestamp"`
	SessionID   string                  `json:"session_id,omitempty"`
	Decision    types.TradingDecision   `json:"decision"`
	Portfolio   types.PortfolioSnapshot `json:"portfolio"`
	Outcome     *types.TradeOutcome     `json:"outcome,omitempty"`
	Performance *TradePerformance       `json:"performance,omitempty"`
}

// DayBucket aggregates activity for one calendar day.
type DayBucket struct {
	Date      string  `json:"date"` // 2006-01-02
	Decisions int     `json:"decisions"`
	Executed  int     `json:"executed"`
	Return    float64 `json:"return"`
}

// PerformanceRecord is the full ledger state for one agent. Created lazily
// on the first decision, never destroyed.
type PerformanceRecord struct {
	AgentID          string                `json:"agent_id"`
	TotalDecisions   int                   `json:"total_decisions"`
	SuccessfulTrades int                   `json:"successful_trades"`
	FailedTrades     int                   `json:"failed_trades"`
	TotalReturn      float64               `json:"total_return"`
	TotalRisk        float64               `json:"total_risk"`
	Decisions        []*DecisionRecord     `json:"decisions"`
	Days             map[string]*DayBucket `json:"days"`
	Risk             RiskMetrics           `json:"risk_metrics"`
}

// PerformanceView is a read-only projection of an agent's record over a
// timeframe window.
type PerformanceView struct {
	AgentID        string           `json:"agent_id"`
	Timeframe      Timeframe        `json:"timeframe"`
	TotalDecisions int              `json:"total_decisions"`
	Executed       int              `json:"executed"`
	Winners        int              `json:"winners"`
	Losers         int              `json:"losers"`
	TotalReturn    float64          `json:"total_return"`
	TotalRisk      float64          `json:"total_risk"`
	Risk           RiskMetrics      `json:"risk_metrics"`
	Decisions      []DecisionRecord `json:"decisions"`
}

// LeaderboardEntry is one row of the comparative projection.
type LeaderboardEntry struct {
	AgentID     string  `json:"agent_id"`
	Decisions   int     `json:"decisions"`
	Executed    int     `json:"executed"`
	TotalReturn float64 `json:"total_return"`
	WinRate     float64 `json:"win_rate"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
}

// Metric selects the leaderboard sort key.
type Metric string

const (
	MetricTotalReturn Metric = "totalReturn"
	MetricWinRate     Metric = "winRate"
	MetricSharpe      Metric = "sharpeRatio"
)
