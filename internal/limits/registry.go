// Package limits owns the per-agent risk limit configuration. Profiles are
// immutable at runtime except through explicit admin Update.
package limits

import (
	"sync"

	"agent-trader/internal/brokererr"
	"agent-trader/internal/store"
	"agent-trader/internal/types"
)

// AgentProfile is one agent personality with its hard risk limits.
type AgentProfile struct {
	ID                  string
	Name                string
	Personality         string
	RiskTolerance       types.RiskTier
	MaxPositionSize     float64 // fraction of total value per position
	MaxDailyRisk        float64 // fraction of total value at risk per day
	MaxDrawdown         float64 // fraction below high-water mark
	MaxLeverage         float64
	SectorConcentration float64
	MinCashReserve      float64 // fraction of total value kept in cash
	MinConfidence       float64
	Symbols             []string
}

// Registry serves agent profiles. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	profiles map[string]AgentProfile
}

// NewRegistry builds a registry from the configured agents.
func NewRegistry(agents []store.AgentConfig) *Registry {
	r := &Registry{profiles: make(map[string]AgentProfile, len(agents))}
	for _, a := range agents {
		r.profiles[a.ID] = AgentProfile{
			ID:                  a.ID,
			Name:                a.Name,
			Personality:         a.Personality,
			RiskTolerance:       types.RiskTier(a.RiskTolerance),
			MaxPositionSize:     a.MaxPositionSize,
			MaxDailyRisk:        a.MaxDailyRisk,
			MaxDrawdown:         a.MaxDrawdown,
			MaxLeverage:         a.MaxLeverage,
			SectorConcentration: a.SectorConcentration,
			MinCashReserve:      a.MinCashReserve,
			MinConfidence:       a.MinConfidence,
			Symbols:             append([]string(nil), a.Symbols...),
		}
	}
	return r
}

// Get returns the profile for agentID. Unknown ids are a ConfigError,
// never a silent default.
func (r *Registry) Get(agentID string) (AgentProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[agentID]
	if !ok {
		return AgentProfile{}, &brokererr.ConfigError{AgentID: agentID, Reason: "unknown agent"}
	}
	return p, nil
}

// Update replaces a profile atomically. Admin path only.
func (r *Registry) Update(p AgentProfile) error {
	if p.ID == "" {
		return &brokererr.ConfigError{AgentID: "", Reason: "profile id cannot be empty"}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.ID] = p
	return nil
}

// IDs returns all configured agent ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.profiles))
	for id := range r.profiles {
		ids = append(ids, id)
	}
	return ids
}
