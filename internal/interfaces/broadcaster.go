package interfaces

import (
	"context"

	"agent-trader/internal/types"
)

// Broadcaster fans out decision and trade events. At-most-once, best
// effort: Publish never blocks the pipeline and reports no error.
type Broadcaster interface {
	Publish(ctx context.Context, ev types.Event)
}
