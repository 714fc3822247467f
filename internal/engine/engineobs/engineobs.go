// Package engineobs wraps an Engine with logging and tracing middleware.
package engineobs

import (
	"context"
	"time"

	"agent-trader/internal/interfaces"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

type observableEngine struct {
	engine interfaces.Engine
}

var _ interfaces.Engine = (*observableEngine)(nil)

// Wrap wraps an engine with observability middleware.
func Wrap(engine interfaces.Engine) interfaces.Engine {
	return &observableEngine{engine: engine}
}

func (oe *observableEngine) Cycle(ctx context.Context, agentID string) (*types.CycleResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Cycle.obs")
	defer span.End()

	start := time.Now()
	logger.InfoSkip(ctx, 1, "Cycle started", "agent_id", agentID)

	result, err := oe.engine.Cycle(ctx, agentID)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Cycle failed", err,
			"agent_id", agentID,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, err
	}

	fields := []any{
		"agent_id", agentID,
		"decision_id", result.DecisionID,
		"action", result.Decision.Action,
		"symbol", result.Decision.Symbol,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if result.Execution != nil {
		fields = append(fields, "execution_state", result.Execution.State)
	}
	logger.InfoSkip(ctx, 1, "Cycle completed", fields...)
	return result, nil
}
