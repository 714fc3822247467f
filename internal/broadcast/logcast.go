package broadcast

import (
	"context"

	"agent-trader/internal/logger"
	"agent-trader/internal/types"
)

// LogBroadcaster writes events to the structured log instead of a
// websocket. Used for headless runs and tests.
type LogBroadcaster struct{}

func NewLogBroadcaster() *LogBroadcaster { return &LogBroadcaster{} }

func (b *LogBroadcaster) Publish(ctx context.Context, ev types.Event) {
	logger.Info(ctx, "Event",
		"event_id", ev.ID,
		"event_type", ev.Type,
		"agent_id", ev.AgentID,
		"symbol", ev.Symbol,
		"action", ev.Action,
		"quantity", ev.Quantity,
		"confidence", ev.Confidence,
		"source", ev.Source,
	)
}
