package interfaces

import (
	"context"

	"agent-trader/internal/types"
)

// SignalProvider supplies normalized market and news signals per symbol.
// The core pipeline never computes sentiment itself.
type SignalProvider interface {
	MarketSignal(ctx context.Context, symbol string) (types.MarketSignal, error)
	NewsSignal(ctx context.Context, symbol string) (types.NewsSignal, error)
}
