// Package signals provides SignalProvider implementations. The core
// pipeline consumes normalized scores only; everything here is a
// collaborator supplying them.
package signals

import (
	"context"
	"math/rand"
	"sync"

	"agent-trader/internal/types"
)

// Simulated produces plausible signals from a seeded random source, for
// DRY_RUN mode and deterministic tests.
type Simulated struct {
	mu  sync.Mutex
	rng *rand.Rand
	// drift biases each symbol so runs show persistent trends instead of
	// pure noise.
	drift map[string]float64
}

func NewSimulated(seed int64) *Simulated {
	return &Simulated{
		rng:   rand.New(rand.NewSource(seed)),
		drift: map[string]float64{},
	}
}

func (s *Simulated) MarketSignal(ctx context.Context, symbol string) (types.MarketSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := clampScore(s.symbolDrift(symbol) + (s.rng.Float64()*2-1)*0.5)

	sig := types.MarketSignal{Score: score}
	switch {
	case score > 0.15:
		sig.Trend = "bullish"
	case score < -0.15:
		sig.Trend = "bearish"
	default:
		sig.Trend = "neutral"
	}
	switch v := s.rng.Float64(); {
	case v < 0.2:
		sig.Volatility = "high"
	case v < 0.6:
		sig.Volatility = "medium"
	default:
		sig.Volatility = "low"
	}
	if s.rng.Float64() < 0.3 {
		sig.Volume = "high"
	} else {
		sig.Volume = "normal"
	}
	return sig, nil
}

func (s *Simulated) NewsSignal(ctx context.Context, symbol string) (types.NewsSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score := clampScore(s.symbolDrift(symbol)*0.5 + (s.rng.Float64()*2-1)*0.6)

	sig := types.NewsSignal{Score: score}
	switch {
	case score > 0.1:
		sig.Sentiment = "positive"
	case score < -0.1:
		sig.Sentiment = "negative"
	default:
		sig.Sentiment = "neutral"
	}
	if s.rng.Float64() < 0.25 {
		sig.HighImpact = 1 + s.rng.Intn(3)
	}
	return sig, nil
}

// symbolDrift lazily assigns a persistent bias in [-0.4,0.4]. Caller
// holds s.mu.
func (s *Simulated) symbolDrift(symbol string) float64 {
	d, ok := s.drift[symbol]
	if !ok {
		d = (s.rng.Float64()*2 - 1) * 0.4
		s.drift[symbol] = d
	}
	return d
}

func clampScore(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
