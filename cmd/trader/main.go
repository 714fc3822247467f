package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"agent-trader/internal/logger"
	"agent-trader/internal/store"
	"agent-trader/internal/trace"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	_ = godotenv.Load()

	configPath := "config.yaml"
	if v := os.Getenv("TRADER_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := store.LoadConfig(configPath)
	must(err)

	must(logger.Init())
	must(trace.Init())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	app, err := bootstrap(ctx, cfg)
	must(err)

	if cfg.Mode == "DRY_RUN" {
		logger.Info(ctx, "Running in DRY_RUN mode, orders are simulated")
	}

	for _, agentID := range app.registry.IDs() {
		must(app.scheduler.Start(ctx, agentID))
	}
	logger.Info(ctx, "Trader started", "agents", len(app.registry.IDs()), "mode", cfg.Mode)

	<-sigc
	logger.Info(ctx, "Shutting down")

	app.scheduler.StopAll()
	cancel()
	app.close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = trace.Shutdown(shutdownCtx)
}
