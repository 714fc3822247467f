package narrative

import (
	"context"

	"agent-trader/internal/types"
)

// NoopNarrator is the fallback when no LLM provider is configured. It
// returns nothing, so callers keep their heuristic reasoning.
type NoopNarrator struct{}

func NewNoopNarrator() *NoopNarrator { return &NoopNarrator{} }

func (n *NoopNarrator) Narrate(ctx context.Context, personality, symbol string, action types.Action,
	market types.MarketSignal, news types.NewsSignal) (string, error) {
	return "", nil
}
