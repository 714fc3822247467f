package store

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentConfig declares one agent personality and its risk limits.
type AgentConfig struct {
	ID                  string   `yaml:"id"`
	Name                string   `yaml:"name"`
	Personality         string   `yaml:"personality"`
	RiskTolerance       string   `yaml:"risk_tolerance"` // low | medium | high
	MaxPositionSize     float64  `yaml:"max_position_size"`
	MaxDailyRisk        float64  `yaml:"max_daily_risk"`
	MaxDrawdown         float64  `yaml:"max_drawdown"`
	MaxLeverage         float64  `yaml:"max_leverage"`
	SectorConcentration float64  `yaml:"sector_concentration"`
	MinCashReserve      float64  `yaml:"min_cash_reserve"`
	MinConfidence       float64  `yaml:"min_confidence"`
	Symbols             []string `yaml:"symbols"`
}

type Config struct {
	Mode      string `yaml:"mode"` // DRY_RUN | LIVE
	Brokerage struct {
		BaseURL        string `yaml:"base_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"brokerage"`
	Scheduler struct {
		MinIntervalSeconds  int `yaml:"min_interval_seconds"`
		MaxIntervalSeconds  int `yaml:"max_interval_seconds"`
		CycleTimeoutSeconds int `yaml:"cycle_timeout_seconds"`
	} `yaml:"scheduler"`
	Execution struct {
		CancelSettleMs int `yaml:"cancel_settle_ms"`
	} `yaml:"execution"`
	Ledger struct {
		Dir string `yaml:"dir"`
	} `yaml:"ledger"`
	Broadcast struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"broadcast"`
	Narrative struct {
		Provider    string  `yaml:"provider"` // OPENAI or empty for heuristic only
		Model       string  `yaml:"model"`
		MaxTokens   int     `yaml:"max_tokens"`
		Temperature float32 `yaml:"temperature"`
		System      string  `yaml:"system"`
	} `yaml:"narrative"`
	Signals struct {
		Source       string `yaml:"source"` // SIMULATED | HEADLINES
		CacheMinutes int    `yaml:"cache_minutes"`
	} `yaml:"signals"`
	Agents []AgentConfig `yaml:"agents"`
}

func (c *Config) Validate() error {
	if c.Mode != "DRY_RUN" && c.Mode != "LIVE" {
		return fmt.Errorf("invalid mode '%s': must be 'DRY_RUN' or 'LIVE'", c.Mode)
	}
	if c.Mode == "LIVE" && c.Brokerage.BaseURL == "" {
		return errors.New("brokerage.base_url is required in LIVE mode")
	}
	if len(c.Agents) == 0 {
		return errors.New("at least one agent must be configured")
	}
	if c.Scheduler.MinIntervalSeconds > c.Scheduler.MaxIntervalSeconds {
		return fmt.Errorf("scheduler min interval %ds exceeds max %ds",
			c.Scheduler.MinIntervalSeconds, c.Scheduler.MaxIntervalSeconds)
	}
	if c.Signals.Source != "SIMULATED" && c.Signals.Source != "HEADLINES" {
		return fmt.Errorf("signals.source must be 'SIMULATED' or 'HEADLINES', got '%s'", c.Signals.Source)
	}

	seen := map[string]bool{}
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.ID == "" {
			return fmt.Errorf("agents[%d]: id cannot be empty", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id '%s'", a.ID)
		}
		seen[a.ID] = true
		if a.RiskTolerance != "low" && a.RiskTolerance != "medium" && a.RiskTolerance != "high" {
			return fmt.Errorf("agent '%s': risk_tolerance must be low, medium or high, got '%s'", a.ID, a.RiskTolerance)
		}
		if a.MaxPositionSize <= 0 || a.MaxPositionSize > 1 {
			return fmt.Errorf("agent '%s': max_position_size must be in (0,1], got %.3f", a.ID, a.MaxPositionSize)
		}
		if a.MaxDailyRisk <= 0 || a.MaxDailyRisk > 1 {
			return fmt.Errorf("agent '%s': max_daily_risk must be in (0,1], got %.3f", a.ID, a.MaxDailyRisk)
		}
		if a.MaxDrawdown <= 0 || a.MaxDrawdown > 1 {
			return fmt.Errorf("agent '%s': max_drawdown must be in (0,1], got %.3f", a.ID, a.MaxDrawdown)
		}
		if a.MinCashReserve < 0 || a.MinCashReserve >= 1 {
			return fmt.Errorf("agent '%s': min_cash_reserve must be in [0,1), got %.3f", a.ID, a.MinCashReserve)
		}
		if a.MinConfidence < 0 || a.MinConfidence > 1 {
			return fmt.Errorf("agent '%s': min_confidence must be in [0,1], got %.3f", a.ID, a.MinConfidence)
		}
		if len(a.Symbols) == 0 {
			return fmt.Errorf("agent '%s': symbols cannot be empty", a.ID)
		}
	}
	return nil
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}

	if c.Brokerage.TimeoutSeconds == 0 {
		c.Brokerage.TimeoutSeconds = 10
	}
	if c.Scheduler.MinIntervalSeconds == 0 {
		c.Scheduler.MinIntervalSeconds = 30
	}
	if c.Scheduler.MaxIntervalSeconds == 0 {
		c.Scheduler.MaxIntervalSeconds = 90
	}
	if c.Scheduler.CycleTimeoutSeconds == 0 {
		c.Scheduler.CycleTimeoutSeconds = 30
	}
	if c.Execution.CancelSettleMs == 0 {
		// Brokerage cancellation is asynchronous with no completion callback;
		// the coordinator waits this long after issuing cancels.
		c.Execution.CancelSettleMs = 1000
	}
	if c.Ledger.Dir == "" {
		c.Ledger.Dir = "data/ledger"
	}
	if c.Broadcast.Addr == "" {
		c.Broadcast.Addr = ":8787"
	}
	if c.Signals.Source == "" {
		c.Signals.Source = "SIMULATED"
	}
	if c.Signals.CacheMinutes == 0 {
		c.Signals.CacheMinutes = 60
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &c, nil
}
