// Package scheduler drives recurring decision cycles per agent at
// jittered intervals. A stop request means "do not schedule the next
// cycle": an in-flight cycle is never interrupted by Stop, only by the
// parent context at shutdown.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"agent-trader/internal/interfaces"
	"agent-trader/internal/logger"
)

// Scheduler runs one loop per started agent. The random source for
// interval jitter is injected so tests are deterministic.
type Scheduler struct {
	engine       interfaces.Engine
	minInterval  time.Duration
	maxInterval  time.Duration
	cycleTimeout time.Duration

	rngMu sync.Mutex
	rng   *rand.Rand

	mu    sync.Mutex
	stops map[string]chan struct{}
	wg    sync.WaitGroup
}

func New(engine interfaces.Engine, minInterval, maxInterval, cycleTimeout time.Duration, rng *rand.Rand) *Scheduler {
	return &Scheduler{
		engine:       engine,
		minInterval:  minInterval,
		maxInterval:  maxInterval,
		cycleTimeout: cycleTimeout,
		rng:          rng,
		stops:        map[string]chan struct{}{},
	}
}

// Start begins the loop for agentID. Starting a running agent is an error.
func (s *Scheduler) Start(ctx context.Context, agentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.stops[agentID]; running {
		return fmt.Errorf("agent %s already scheduled", agentID)
	}
	stop := make(chan struct{})
	s.stops[agentID] = stop

	s.wg.Add(1)
	go s.loop(ctx, agentID, stop)

	logger.Info(ctx, "Agent scheduled", "agent_id", agentID,
		"min_interval", s.minInterval.String(), "max_interval", s.maxInterval.String())
	return nil
}

// Stop prevents agentID's next cycle. The current cycle, if any, runs to
// completion.
func (s *Scheduler) Stop(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stop, ok := s.stops[agentID]; ok {
		close(stop)
		delete(s.stops, agentID)
	}
}

// StopAll stops every agent loop and waits for the loops (not in-flight
// cycles) to exit.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	for id, stop := range s.stops {
		close(stop)
		delete(s.stops, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, agentID string, stop chan struct{}) {
	defer s.wg.Done()

	for {
		timer := time.NewTimer(s.nextDelay())
		select {
		case <-timer.C:
			// Fire-and-forget: a slow cycle must not block the next timer.
			go s.runCycle(ctx, agentID)
		case <-stop:
			timer.Stop()
			logger.Info(ctx, "Agent loop stopped", "agent_id", agentID)
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, agentID string) {
	cycleCtx, cancel := context.WithTimeout(ctx, s.cycleTimeout)
	defer cancel()

	if _, err := s.engine.Cycle(cycleCtx, agentID); err != nil {
		logger.ErrorWithErr(cycleCtx, "Scheduled cycle failed", err, "agent_id", agentID)
	}
}

func (s *Scheduler) nextDelay() time.Duration {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	spread := s.maxInterval - s.minInterval
	if spread <= 0 {
		return s.minInterval
	}
	return s.minInterval + time.Duration(s.rng.Int63n(int64(spread)))
}

// Running reports whether agentID currently has a loop.
func (s *Scheduler) Running(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stops[agentID]
	return ok
}
