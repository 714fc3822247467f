// Package narrobs wraps a Narrator with logging and tracing middleware.
package narrobs

import (
	"context"
	"time"

	"agent-trader/internal/interfaces"
	"agent-trader/internal/logger"
	"agent-trader/internal/trace"
	"agent-trader/internal/types"
)

type observableNarrator struct {
	narrator interfaces.Narrator
}

var _ interfaces.Narrator = (*observableNarrator)(nil)

func Wrap(narrator interfaces.Narrator) interfaces.Narrator {
	return &observableNarrator{narrator: narrator}
}

func (on *observableNarrator) Narrate(ctx context.Context, personality, symbol string, action types.Action,
	market types.MarketSignal, news types.NewsSignal) (string, error) {

	ctx, span := trace.StartSpan(ctx, "narrator.Narrate")
	defer span.End()

	start := time.Now()
	text, err := on.narrator.Narrate(ctx, personality, symbol, action, market, news)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Narration failed", err,
			"symbol", symbol,
			"action", action,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	logger.DebugSkip(ctx, 1, "Narration completed",
		"symbol", symbol,
		"action", action,
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}
