package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() *Config {
	c := &Config{Mode: "DRY_RUN"}
	c.Signals.Source = "SIMULATED"
	c.Agents = []AgentConfig{{
		ID:              "a1",
		RiskTolerance:   "medium",
		MaxPositionSize: 0.1,
		MaxDailyRisk:    0.05,
		MaxDrawdown:     0.2,
		MinConfidence:   0.5,
		Symbols:         []string{"AAPL"},
	}}
	return c
}

func TestValidConfigPasses(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestInvalidMode(t *testing.T) {
	c := validConfig()
	c.Mode = "PAPER"
	if err := c.Validate(); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestLiveModeRequiresBaseURL(t *testing.T) {
	c := validConfig()
	c.Mode = "LIVE"
	if err := c.Validate(); err == nil {
		t.Error("Expected error for LIVE mode without base_url")
	}
	c.Brokerage.BaseURL = "https://paper-api.alpaca.markets"
	if err := c.Validate(); err != nil {
		t.Errorf("Expected valid LIVE config, got %v", err)
	}
}

func TestNoAgentsRejected(t *testing.T) {
	c := validConfig()
	c.Agents = nil
	if err := c.Validate(); err == nil {
		t.Error("Expected error for empty agent list")
	}
}

func TestDuplicateAgentIDRejected(t *testing.T) {
	c := validConfig()
	c.Agents = append(c.Agents, c.Agents[0])
	err := c.Validate()
	if err == nil {
		t.Fatal("Expected error for duplicate agent id")
	}
	if !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("Expected duplicate id error, got %v", err)
	}
}

func TestAgentLimitRanges(t *testing.T) {
	cases := []func(*AgentConfig){
		func(a *AgentConfig) { a.RiskTolerance = "extreme" },
		func(a *AgentConfig) { a.MaxPositionSize = 0 },
		func(a *AgentConfig) { a.MaxPositionSize = 1.5 },
		func(a *AgentConfig) { a.MaxDailyRisk = -0.1 },
		func(a *AgentConfig) { a.MaxDrawdown = 0 },
		func(a *AgentConfig) { a.MinCashReserve = 1.0 },
		func(a *AgentConfig) { a.MinConfidence = 1.1 },
		func(a *AgentConfig) { a.Symbols = nil },
	}
	for i, mutate := range cases {
		c := validConfig()
		mutate(&c.Agents[0])
		if err := c.Validate(); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestSchedulerIntervalOrdering(t *testing.T) {
	c := validConfig()
	c.Scheduler.MinIntervalSeconds = 90
	c.Scheduler.MaxIntervalSeconds = 30
	if err := c.Validate(); err == nil {
		t.Error("Expected error when min interval exceeds max")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	yaml := `
mode: DRY_RUN
agents:
  - id: a1
    risk_tolerance: medium
    max_position_size: 0.1
    max_daily_risk: 0.05
    max_drawdown: 0.2
    min_confidence: 0.5
    symbols: [AAPL]
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if c.Scheduler.MinIntervalSeconds != 30 || c.Scheduler.MaxIntervalSeconds != 90 {
		t.Errorf("Expected default intervals 30/90, got %d/%d",
			c.Scheduler.MinIntervalSeconds, c.Scheduler.MaxIntervalSeconds)
	}
	if c.Execution.CancelSettleMs != 1000 {
		t.Errorf("Expected default settle delay 1000ms, got %d", c.Execution.CancelSettleMs)
	}
	if c.Ledger.Dir != "data/ledger" {
		t.Errorf("Expected default ledger dir, got %s", c.Ledger.Dir)
	}
	if c.Signals.Source != "SIMULATED" {
		t.Errorf("Expected default SIMULATED signals, got %s", c.Signals.Source)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}
