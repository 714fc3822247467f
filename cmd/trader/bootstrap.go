package main

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"agent-trader/internal/broadcast"
	"agent-trader/internal/broker/alpaca"
	"agent-trader/internal/broker/brokerobs"
	"agent-trader/internal/engine"
	"agent-trader/internal/engine/engineobs"
	"agent-trader/internal/execution"
	"agent-trader/internal/interfaces"
	"agent-trader/internal/ledger"
	"agent-trader/internal/limits"
	"agent-trader/internal/logger"
	"agent-trader/internal/narrative"
	"agent-trader/internal/narrative/narrobs"
	"agent-trader/internal/risk"
	"agent-trader/internal/scheduler"
	"agent-trader/internal/signals"
	"agent-trader/internal/store"
	"agent-trader/internal/synth"
)

type app struct {
	registry  *limits.Registry
	scheduler *scheduler.Scheduler
	hub       *broadcast.Hub
	server    *http.Server
}

func (a *app) close() {
	if a.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = a.server.Shutdown(shutdownCtx)
	}
	if a.hub != nil {
		a.hub.Close()
	}
}

// bootstrap wires the pipeline from config. Component construction order
// follows data flow: brokerage and signals first, engine last.
func bootstrap(ctx context.Context, cfg *store.Config) (*app, error) {
	seed := seedFromEnv()
	rng := rand.New(rand.NewSource(seed))

	a := &app{registry: limits.NewRegistry(cfg.Agents)}

	brokerage := brokerobs.Wrap(alpaca.New(alpaca.Params{
		Mode:    cfg.Mode,
		BaseURL: cfg.Brokerage.BaseURL,
		Key:     os.Getenv("APCA_API_KEY_ID"),
		Secret:  os.Getenv("APCA_API_SECRET_KEY"),
		Timeout: time.Duration(cfg.Brokerage.TimeoutSeconds) * time.Second,
		Seed:    seed,
	}))

	var provider interfaces.SignalProvider
	simulated := signals.NewSimulated(seed)
	if cfg.Signals.Source == "HEADLINES" {
		provider = signals.NewHeadlines(simulated, time.Duration(cfg.Signals.CacheMinutes)*time.Minute)
	} else {
		provider = simulated
	}

	var narrator interfaces.Narrator
	if cfg.Narrative.Provider == "OPENAI" {
		narrator = narrobs.Wrap(narrative.NewOpenAINarrator(cfg))
	} else {
		narrator = narrative.NewNoopNarrator()
	}

	var broadcaster interfaces.Broadcaster
	if cfg.Broadcast.Enabled {
		hub := broadcast.NewHub()
		go hub.Run()
		a.hub = hub
		a.server = hub.Serve(cfg.Broadcast.Addr)
		logger.Info(ctx, "Broadcast hub listening", "addr", cfg.Broadcast.Addr)
		broadcaster = hub
	} else {
		broadcaster = broadcast.NewLogBroadcaster()
	}

	ledgerSvc, err := ledger.NewService(cfg.Ledger.Dir)
	if err != nil {
		return nil, err
	}

	coordinator := execution.New(brokerage, broadcaster,
		time.Duration(cfg.Execution.CancelSettleMs)*time.Millisecond)

	eng := engineobs.Wrap(engine.New(engine.Params{
		Registry:    a.registry,
		Signals:     provider,
		Synthesizer: synth.New(rng, narrator),
		Validator:   risk.New(),
		Coordinator: coordinator,
		Brokerage:   brokerage,
		Ledger:      ledgerSvc,
		Broadcaster: broadcaster,
	}))

	a.scheduler = scheduler.New(eng,
		time.Duration(cfg.Scheduler.MinIntervalSeconds)*time.Second,
		time.Duration(cfg.Scheduler.MaxIntervalSeconds)*time.Second,
		time.Duration(cfg.Scheduler.CycleTimeoutSeconds)*time.Second,
		rand.New(rand.NewSource(seed+1)))

	return a, nil
}

func seedFromEnv() int64 {
	if v := os.Getenv("TRADER_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return time.Now().UnixNano()
}
