package signals

import (
	"sync"
	"time"

	"agent-trader/internal/types"
)

// newsCache holds scored news signals per symbol with a TTL, so scraping
// runs at most once per window per symbol.
type newsCache struct {
	mu       sync.RWMutex
	data     map[string]cachedNews
	duration time.Duration
}

type cachedNews struct {
	signal  types.NewsSignal
	expires time.Time
}

func newNewsCache(duration time.Duration) *newsCache {
	return &newsCache{
		data:     map[string]cachedNews{},
		duration: duration,
	}
}

func (c *newsCache) get(symbol string) (types.NewsSignal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.data[symbol]
	if !ok || time.Now().After(entry.expires) {
		return types.NewsSignal{}, false
	}
	return entry.signal, true
}

func (c *newsCache) set(symbol string, signal types.NewsSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[symbol] = cachedNews{signal: signal, expires: time.Now().Add(c.duration)}
}

func (c *newsCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	for symbol, entry := range c.data {
		if now.After(entry.expires) {
			delete(c.data, symbol)
		}
	}
}
