package interfaces

import (
	"context"

	"agent-trader/internal/types"
)

// Narrator optionally turns a synthesized decision into free-text
// justification. Absence or failure must never block decision generation.
type Narrator interface {
	Narrate(ctx context.Context, personality, symbol string, action types.Action,
		market types.MarketSignal, news types.NewsSignal) (string, error)
}
