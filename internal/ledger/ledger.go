// Package ledger records every decision and its eventual outcome per
// agent, computes per-trade P&L and rolling risk metrics, and serves
// agent and comparative leaderboard projections.
//
// All mutation for one agent is serialized behind a per-agent lock and
// persisted to an append-only event log, so concurrent flows cannot drop
// each other's updates.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

type agentState struct {
	mu  sync.Mutex
	rec *PerformanceRecord
}

// Service is the performance ledger. Construct with NewService and inject
// where needed; there is no package-level instance.
type Service struct {
	store *Store

	mu     sync.Mutex
	agents map[string]*agentState

	now func() time.Time
}

// NewService creates a ledger backed by dir and replays any existing
// event logs into memory.
func NewService(dir string) (*Service, error) {
	s := &Service{
		store:  NewStore(dir),
		agents: map[string]*agentState{},
		now:    time.Now,
	}

	ids, err := s.store.AgentIDs()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		events, err := s.store.Replay(id)
		if err != nil {
			return nil, err
		}
		st := s.state(id)
		st.mu.Lock()
		for _, ev := range events {
			switch ev.Kind {
			case "decision":
				if ev.Decision != nil {
					s.applyDecision(st.rec, ev.Decision)
				}
			case "outcome":
				if ev.Outcome != nil {
					s.applyOutcome(st.rec, ev.DecisionID, ev.Outcome, ev.Performance)
				}
			}
		}
		st.mu.Unlock()
	}
	return s, nil
}

// state returns (creating lazily) the serialized state for one agent.
func (s *Service) state(agentID string) *agentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.agents[agentID]
	if !ok {
		st = &agentState{rec: &PerformanceRecord{
			AgentID: agentID,
			Days:    map[string]*DayBucket{},
		}}
		s.agents[agentID] = st
	}
	return st
}

// RecordDecision appends a new DecisionRecord with no outcome yet and
// returns its id. A persistence failure is logged and swallowed: the
// in-memory state is authoritative and the next mutation retries the log.
func (s *Service) RecordDecision(ctx context.Context, agentID string, decision types.TradingDecision,
	portfolio types.PortfolioSnapshot, sessionID string) (string, error) {

	ctx, span := trace.StartSpan(ctx, "ledger.RecordDecision")
	defer span.End()

	record := &DecisionRecord{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		SessionID: sessionID,
		Decision:  decision,
		Portfolio: portfolio,
	}

	st := s.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	s.applyDecision(st.rec, record)

	if err := s.store.Append(agentID, event{Kind: "decision", At: record.Timestamp, Decision: record}); err != nil {
		logger.ErrorWithErr(ctx, "Ledger persist failed, in-memory state retained", err,
			"agent_id", agentID, "decision_id", record.ID)
	}

	logger.Debug(ctx, "Decision recorded", "agent_id", agentID, "decision_id", record.ID,
		"action", decision.Action, "total_decisions", st.rec.TotalDecisions)
	return record.ID, nil
}

// UpdateOutcome resolves a previously recorded decision. An outcome with
// Executed false stores the resolution but leaves every counter and
// metric untouched. Each record's outcome is set at most once.
func (s *Service) UpdateOutcome(ctx context.Context, agentID, decisionID string, outcome types.TradeOutcome) error {
	ctx, span := trace.StartSpan(ctx, "ledger.UpdateOutcome")
	defer span.End()

	st := s.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	record := findRecord(st.rec, decisionID)
	if record == nil {
		return fmt.Errorf("agent %s has no decision %s", agentID, decisionID)
	}
	if record.Outcome != nil {
		return fmt.Errorf("decision %s already has an outcome", decisionID)
	}

	var perf *TradePerformance
	if outcome.Executed {
		perf = computePerformance(outcome)
	}
	s.applyOutcome(st.rec, decisionID, &outcome, perf)

	if err := s.store.Append(agentID, event{
		Kind:        "outcome",
		At:          s.now(),
		DecisionID:  decisionID,
		Outcome:     &outcome,
		Performance: perf,
	}); err != nil {
		logger.ErrorWithErr(ctx, "Ledger persist failed, in-memory state retained", err,
			"agent_id", agentID, "decision_id", decisionID)
	}

	if perf != nil {
		logger.Info(ctx, "Trade outcome recorded",
			"agent_id", agentID,
			"decision_id", decisionID,
			"profit_loss", perf.ProfitLoss,
			"return_pct", perf.ReturnPct,
			"win_rate", st.rec.Risk.WinRate,
			"sharpe", st.rec.Risk.SharpeRatio,
		)
	}
	return nil
}

// applyDecision mutates rec in place. Caller holds the agent lock.
func (s *Service) applyDecision(rec *PerformanceRecord, record *DecisionRecord) {
	rec.Decisions = append(rec.Decisions, record)
	rec.TotalDecisions++
	bucket := s.day(rec, record.Timestamp)
	bucket.Decisions++
}

// applyOutcome mutates rec in place. Caller holds the agent lock. perf is
// nil for non-executed outcomes, which leave all counters unchanged.
func (s *Service) applyOutcome(rec *PerformanceRecord, decisionID string, outcome *types.TradeOutcome, perf *TradePerformance) {
	record := findRecord(rec, decisionID)
	if record == nil || record.Outcome != nil {
		return
	}
	record.Outcome = outcome
	if !outcome.Executed || perf == nil {
		return
	}
	record.Performance = perf

	if perf.ProfitLoss > 0 {
		rec.SuccessfulTrades++
	} else {
		rec.FailedTrades++
	}
	rec.TotalReturn += perf.ReturnPct
	rec.TotalRisk += perf.Risk

	bucket := s.day(rec, record.Timestamp)
	bucket.Executed++
	bucket.Return += perf.ReturnPct

	returns := make([]float64, 0, len(rec.Decisions))
	winners := 0
	for _, d := range rec.Decisions {
		if d.Performance == nil {
			continue
		}
		returns = append(returns, d.Performance.ReturnPct)
		if d.Performance.ProfitLoss > 0 {
			winners++
		}
	}
	rec.Risk = computeRiskMetrics(returns, winners)
}

// computePerformance applies the P&L formula to an executed outcome. The
// same (exit-entry)*qty-fees expression is used for both BUY and SELL
// outcomes; see the ledger tests for the locked-in sign convention.
func computePerformance(outcome types.TradeOutcome) *TradePerformance {
	perf := &TradePerformance{
		ProfitLoss: (outcome.ExitPrice-outcome.EntryPrice)*float64(outcome.Qty) - outcome.Fees,
		Invested:   outcome.EntryPrice * float64(outcome.Qty),
	}
	if perf.Invested != 0 {
		perf.ReturnPct = perf.ProfitLoss / perf.Invested * 100
		perf.Risk = math.Abs(perf.ProfitLoss) / perf.Invested * 100
	}
	return perf
}

func (s *Service) day(rec *PerformanceRecord, ts time.Time) *DayBucket {
	key := ts.Format("2006-01-02")
	bucket, ok := rec.Days[key]
	if !ok {
		bucket = &DayBucket{Date: key}
		rec.Days[key] = bucket
	}
	return bucket
}

func findRecord(rec *PerformanceRecord, decisionID string) *DecisionRecord {
	for _, d := range rec.Decisions {
		if d.ID == decisionID {
			return d
		}
	}
	return nil
}

// AgentPerformance returns a read-only projection of one agent over a
// timeframe window. Ledger state is never mutated.
func (s *Service) AgentPerformance(agentID string, timeframe Timeframe) PerformanceView {
	st := s.state(agentID)
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := s.cutoff(timeframe)
	view := PerformanceView{AgentID: agentID, Timeframe: timeframe}

	returns := []float64{}
	for _, d := range st.rec.Decisions {
		if !cutoff.IsZero() && d.Timestamp.Before(cutoff) {
			continue
		}
		view.Decisions = append(view.Decisions, *d)
		view.TotalDecisions++
		if d.Performance == nil {
			continue
		}
		view.Executed++
		returns = append(returns, d.Performance.ReturnPct)
		if d.Performance.ProfitLoss > 0 {
			view.Winners++
		} else {
			view.Losers++
		}
		view.TotalReturn += d.Performance.ReturnPct
		view.TotalRisk += d.Performance.Risk
	}
	view.Risk = computeRiskMetrics(returns, view.Winners)
	return view
}

// Leaderboard ranks every known agent over the timeframe by the chosen
// metric, default total return, descending.
func (s *Service) Leaderboard(timeframe Timeframe, metric Metric) []LeaderboardEntry {
	s.mu.Lock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	entries := make([]LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		view := s.AgentPerformance(id, timeframe)
		entries = append(entries, LeaderboardEntry{
			AgentID:     id,
			Decisions:   view.TotalDecisions,
			Executed:    view.Executed,
			TotalReturn: view.TotalReturn,
			WinRate:     view.Risk.WinRate,
			SharpeRatio: view.Risk.SharpeRatio,
			MaxDrawdown: view.Risk.MaxDrawdown,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		switch metric {
		case MetricWinRate:
			return entries[i].WinRate > entries[j].WinRate
		case MetricSharpe:
			return entries[i].SharpeRatio > entries[j].SharpeRatio
		default:
			return entries[i].TotalReturn > entries[j].TotalReturn
		}
	})
	return entries
}

func (s *Service) cutoff(timeframe Timeframe) time.Time {
	now := s.now()
	switch timeframe {
	case TimeframeDay:
		return now.AddDate(0, 0, -1)
	case TimeframeWeek:
		return now.AddDate(0, 0, -7)
	case TimeframeMonth:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}
