package types

import "time"

// Action is the terminal verdict of a trading decision.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// RiskTier parameterizes synthesis thresholds and confidence constants.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// MarketSignal is a normalized market view produced by an external signal
// provider. Score is a composite in [-1,1].
type MarketSignal struct {
	Trend      string  `json:"trend"`      // bullish | bearish | neutral
	Volatility string  `json:"volatility"` // low | medium | high
	Volume     string  `json:"volume"`     // normal | high
	Score      float64 `json:"score"`
}

// NewsSignal is a normalized news-sentiment view. Score is a composite in
// [-1,1]; HighImpact counts high-impact items behind it.
type NewsSignal struct {
	Sentiment  string  `json:"sentiment"` // positive | negative | neutral
	Score      float64 `json:"score"`
	HighImpact int     `json:"high_impact"`
}

// Position is a single holding inside a portfolio snapshot.
type Position struct {
	Symbol      string  `json:"symbol"`
	Qty         float64 `json:"qty"`
	AvgEntry    float64 `json:"avg_entry"`
	MarketValue float64 `json:"market_value"`
}

// PortfolioSnapshot is a point-in-time read-only view of an account.
// HighWaterMark of 0 means no peak has been observed yet.
type PortfolioSnapshot struct {
	TotalValue    float64    `json:"total_value"`
	BuyingPower   float64    `json:"buying_power"`
	DayChange     float64    `json:"day_change"`
	HighWaterMark float64    `json:"high_water_mark,omitempty"`
	Positions     []Position `json:"positions,omitempty"`
}

// TradingDecision is what the synthesizer produces for one agent and cycle.
// Price nil means market order. Qty 0 means no quantity was chosen (HOLD).
type TradingDecision struct {
	AgentID    string   `json:"agent_id"`
	Symbol     string   `json:"symbol"`
	Action     Action   `json:"action"`
	Qty        int      `json:"qty,omitempty"`
	Price      *float64 `json:"price,omitempty"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	RiskLevel  string   `json:"risk_level"`
}

// RiskSnapshot holds the ratios the validator computed while checking a
// decision. Ephemeral, attached to the ValidationResult for reporting.
type RiskSnapshot struct {
	PositionPct float64 `json:"position_pct"`
	CurrentRisk float64 `json:"current_risk"`
	Drawdown    float64 `json:"drawdown"`
	CashAfter   float64 `json:"cash_after"`
}

// ValidationResult is the outcome of running all risk checks against a
// decision. When Approved is false the caller must use Adjusted (which may
// itself be a forced HOLD) instead of the original decision. Reason joins
// every failing check with "; ".
type ValidationResult struct {
	Approved bool             `json:"approved"`
	Reason   string           `json:"reason,omitempty"`
	Adjusted *TradingDecision `json:"adjusted,omitempty"`
	Metrics  RiskSnapshot     `json:"metrics"`
}

// OrderSide is the brokerage-facing order direction.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderReq is a brokerage order submission.
type OrderReq struct {
	Symbol      string    `json:"symbol"`
	Qty         int       `json:"qty"`
	Side        OrderSide `json:"side"`
	Type        string    `json:"type"`          // market | limit
	TimeInForce string    `json:"time_in_force"` // day | gtc
	LimitPrice  *float64  `json:"limit_price,omitempty"`
	StopPrice   *float64  `json:"stop_price,omitempty"`
}

// Order is the brokerage's view of a submitted order. The coordinator only
// holds transient references to it; the brokerage owns the lifecycle.
type Order struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	Side           OrderSide `json:"side"`
	Qty            int       `json:"qty"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	FilledAvgPrice float64   `json:"filled_avg_price,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ActiveOrderStatuses are the lifecycle states in which an open order can
// still conflict with a new opposite-side submission.
var ActiveOrderStatuses = []string{"new", "pending_new", "accepted", "pending_replace"}

// IsActiveOrderStatus reports whether status is in ActiveOrderStatuses.
func IsActiveOrderStatus(status string) bool {
	for _, s := range ActiveOrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Account mirrors the brokerage account endpoint.
type Account struct {
	TotalValue  float64 `json:"total_value"`
	BuyingPower float64 `json:"buying_power"`
	DayChange   float64 `json:"day_change"`
}

// Event is a broadcast payload for trading decisions and executed trades.
// Delivery is at-most-once and best-effort.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // decision | trade
	AgentID    string    `json:"agent_id"`
	Symbol     string    `json:"symbol"`
	Action     Action    `json:"action"`
	Quantity   int       `json:"quantity,omitempty"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning,omitempty"`
	RiskLevel  string    `json:"risk_level,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"`
}

// ExecutionState tracks one submission attempt through the coordinator.
type ExecutionState string

const (
	StateResolvingConflicts ExecutionState = "RESOLVING_CONFLICTS"
	StateSubmitting         ExecutionState = "SUBMITTING"
	StateFilled             ExecutionState = "FILLED"
	StateRejected           ExecutionState = "REJECTED"
)

// ExecutionResult is what the coordinator returns for one attempt.
type ExecutionResult struct {
	State     ExecutionState `json:"state"`
	Order     *Order         `json:"order,omitempty"`
	Cancelled []string       `json:"cancelled,omitempty"` // conflicting order ids cancelled
	Reason    string         `json:"reason,omitempty"`
}

// CycleResult summarizes one full pipeline cycle for an agent.
type CycleResult struct {
	AgentID    string            `json:"agent_id"`
	DecisionID string            `json:"decision_id"`
	Decision   TradingDecision   `json:"decision"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Execution  *ExecutionResult  `json:"execution,omitempty"`
	Outcome    *TradeOutcome     `json:"outcome,omitempty"`
}

// TradeOutcome reports how a recorded decision eventually resolved.
// Executed false means no capital moved and ledger counters stay untouched.
type TradeOutcome struct {
	Executed   bool    `json:"executed"`
	OrderID    string  `json:"order_id,omitempty"`
	EntryPrice float64 `json:"entry_price,omitempty"`
	ExitPrice  float64 `json:"exit_price,omitempty"`
	Qty        int     `json:"qty,omitempty"`
	Fees       float64 `json:"fees,omitempty"`
	Error      string  `json:"error,omitempty"`
}
