package interfaces

import (
	"context"

	"agent-trader/internal/types"
)

// Engine runs one full decision cycle for an agent.
type Engine interface {
	Cycle(ctx context.Context, agentID string) (*types.CycleResult, error)
}
