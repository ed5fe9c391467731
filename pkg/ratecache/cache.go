// Package ratecache holds the latest rate snapshot per base currency and
// coordinates refreshes against the upstream provider.
//
// Published snapshots are immutable and swapped atomically, so reads never
// lock and never observe partial state. Each base currency has its own TTL
// clock and its own single-flight key: however many callers hit a cold or
// expired entry, at most one provider call is in flight per base.
package ratecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/provider"
)

// Cache serves rate snapshots, refreshing them through the provider when the
// TTL lapses.
type Cache struct {
	provider        provider.RateProvider
	ttl             time.Duration
	maxRetries      int
	initialBackoff  time.Duration
	fallbackEnabled bool
	realTime        bool
	logger          *slog.Logger

	group     singleflight.Group
	snapshots sync.Map // base currency → *domain.RateSnapshot

	now func() time.Time
}

// New creates a cache from the exchange-rate configuration.
func New(p provider.RateProvider, cfg config.ExchangeRate, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		provider:        p,
		ttl:             cfg.CacheTTL,
		maxRetries:      cfg.MaxRetries,
		initialBackoff:  cfg.RetryBackoff,
		fallbackEnabled: cfg.EnableFallback,
		realTime:        cfg.RealTime,
		logger:          logger,
		now:             time.Now,
	}
}

// TTL returns the configured snapshot time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// GetRates returns the snapshot for the base currency, refreshing it when
// the cached one has expired. On refresh failure a previous snapshot is
// served unchanged; with fallback enabled a cold cache yields a synthesized
// snapshot instead of an error.
func (c *Cache) GetRates(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	if snap := c.load(base); snap != nil && snap.Age(c.now()) < c.ttl {
		return snap, nil
	}

	ch := c.group.DoChan(base, func() (any, error) {
		return c.refresh(ctx, base)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.RateSnapshot), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WarmUp eagerly fetches snapshots for the given base currencies. Intended
// for process startup; individual failures are joined, not fatal.
func (c *Cache) WarmUp(ctx context.Context, bases ...string) error {
	var errs []error
	for _, base := range bases {
		if _, err := c.GetRates(ctx, base); err != nil {
			errs = append(errs, fmt.Errorf("warm up %s: %w", base, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Cache) load(base string) *domain.RateSnapshot {
	v, ok := c.snapshots.Load(base)
	if !ok {
		return nil
	}
	return v.(*domain.RateSnapshot)
}

func (c *Cache) refresh(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	// With real-time conversion disabled the provider is never consulted;
	// prices come from the static table alone.
	if !c.realTime {
		if fb := fallbackSnapshot(base, c.now()); fb != nil {
			c.snapshots.Store(base, fb)
			return fb, nil
		}
		return nil, fmt.Errorf("%w for %s: real-time conversion disabled",
			domain.ErrRateUnavailable, base)
	}

	snap, err := c.fetchWithRetry(ctx, base)
	if err == nil {
		c.snapshots.Store(base, snap)
		return snap, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// Serve-stale-on-failure: an expired snapshot beats no snapshot.
	if prev := c.load(base); prev != nil {
		c.logger.Warn("Provider refresh failed, serving stale snapshot",
			"base", base, "fetched_at", prev.FetchedAt, "error", err)
		return prev, nil
	}

	if c.fallbackEnabled {
		if fb := fallbackSnapshot(base, c.now()); fb != nil {
			c.logger.Warn("Provider refresh failed, using static fallback rates",
				"base", base, "error", err)
			c.snapshots.Store(base, fb)
			return fb, nil
		}
	}

	return nil, fmt.Errorf("%w for %s: %v", domain.ErrRateUnavailable, base, err)
}

func (c *Cache) fetchWithRetry(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	var lastErr error
	delay := c.initialBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("Retrying rate fetch",
				"base", base, "attempt", attempt, "delay", delay)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		snap, err := c.provider.FetchRates(ctx, base)
		if err == nil {
			return snap, nil
		}
		lastErr = err
		if !provider.IsTransient(err) {
			break
		}
	}
	return nil, lastErr
}
