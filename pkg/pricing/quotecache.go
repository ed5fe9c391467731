package pricing

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// quoteCache memoizes resolved package quotes for the configured price TTL.
// A zero TTL disables it. Override writes drop the affected entry so writes
// never serve a superseded price.
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]quoteEntry
}

type quoteEntry struct {
	quote PackageQuote
	at    time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	c := &quoteCache{ttl: ttl}
	if ttl > 0 {
		c.entries = make(map[string]quoteEntry)
	}
	return c
}

func quoteKey(packageID uuid.UUID, currency string) string {
	return packageID.String() + ":" + currency
}

func (c *quoteCache) get(packageID uuid.UUID, currency string) (*PackageQuote, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[quoteKey(packageID, currency)]
	c.mu.RUnlock()
	if !ok || time.Since(entry.at) > c.ttl {
		return nil, false
	}
	q := entry.quote
	return &q, true
}

func (c *quoteCache) put(quote PackageQuote) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[quoteKey(quote.PackageID, quote.Currency)] = quoteEntry{
		quote: quote,
		at:    time.Now(),
	}
	c.mu.Unlock()
}

func (c *quoteCache) drop(packageID uuid.UUID, currency string) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	delete(c.entries, quoteKey(packageID, currency))
	c.mu.Unlock()
}
