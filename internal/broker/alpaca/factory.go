package alpaca

import "agent-trader/internal/interfaces"

// New returns the brokerage for the configured mode: the in-memory
// simulator for DRY_RUN, the REST client otherwise.
func New(p Params) interfaces.Brokerage {
	if p.Mode == "DRY_RUN" {
		return NewSim(p.Seed)
	}
	return NewClient(p)
}
