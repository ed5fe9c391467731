package ratecache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/provider"
)

// fakeProvider serves canned snapshots and counts upstream calls.
type fakeProvider struct {
	calls     atomic.Int64
	err       error
	rates     map[string]map[string]decimal.Decimal
	fetchedAt time.Time
	block     chan struct{} // when set, FetchRates waits until closed
}

func (f *fakeProvider) FetchRates(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	rates, ok := f.rates[base]
	if !ok {
		return nil, fmt.Errorf("%w: unknown base %s", provider.ErrNonTransient, base)
	}
	at := f.fetchedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return &domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: at,
		Source:    domain.SourceLive,
	}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func usdEurRates() map[string]map[string]decimal.Decimal {
	return map[string]map[string]decimal.Decimal{
		"USD": {"EUR": decimal.RequireFromString("0.90")},
	}
}

func testConfig() config.ExchangeRate {
	return config.ExchangeRate{
		CacheTTL:       time.Minute,
		MaxRetries:     2,
		RetryBackoff:   time.Millisecond,
		EnableFallback: false,
		RealTime:       true,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetRates_CachedWithinTTL(t *testing.T) {
	fake := &fakeProvider{rates: usdEurRates()}
	cache := New(fake, testConfig(), testLogger())

	first, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)

	second, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, fake.calls.Load(), "second call within TTL must not hit the provider")
}

func TestGetRates_SingleFlightColdCache(t *testing.T) {
	fake := &fakeProvider{rates: usdEurRates(), block: make(chan struct{})}
	cache := New(fake, testConfig(), testLogger())

	const callers = 10
	var wg sync.WaitGroup
	results := make([]*domain.RateSnapshot, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.GetRates(context.Background(), "USD")
		}(i)
	}

	// Give every caller time to join the flight, then release the provider.
	time.Sleep(100 * time.Millisecond)
	close(fake.block)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, fake.calls.Load(),
		"concurrent cold callers must share one provider call")
}

func TestGetRates_IndependentBases(t *testing.T) {
	fake := &fakeProvider{rates: map[string]map[string]decimal.Decimal{
		"USD": {"EUR": decimal.RequireFromString("0.90")},
		"EUR": {"USD": decimal.RequireFromString("1.11")},
	}}
	cache := New(fake, testConfig(), testLogger())

	_, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	_, err = cache.GetRates(context.Background(), "EUR")
	require.NoError(t, err)

	assert.EqualValues(t, 2, fake.calls.Load(), "each base currency has its own TTL clock")
}

func TestGetRates_ServesStaleOnFailure(t *testing.T) {
	fake := &fakeProvider{
		rates:     usdEurRates(),
		fetchedAt: time.Now().Add(-2 * time.Minute), // already older than the TTL
	}
	cache := New(fake, testConfig(), testLogger())

	stale, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)

	// Provider now fails; the expired snapshot must still be served.
	fake.err = fmt.Errorf("%w: upstream down", provider.ErrTransient)
	got, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Same(t, stale, got)
}

func TestGetRates_FallbackWhenColdAndEnabled(t *testing.T) {
	fake := &fakeProvider{err: fmt.Errorf("%w: upstream down", provider.ErrTransient)}
	cfg := testConfig()
	cfg.EnableFallback = true
	cache := New(fake, cfg, testLogger())

	snap, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, snap.Source)
	rate, ok := snap.Rate("EUR")
	require.True(t, ok)
	assert.True(t, rate.IsPositive())
}

func TestGetRates_RateUnavailableWhenFallbackDisabled(t *testing.T) {
	fake := &fakeProvider{err: fmt.Errorf("%w: upstream down", provider.ErrTransient)}
	cache := New(fake, testConfig(), testLogger())

	_, err := cache.GetRates(context.Background(), "USD")
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
	// MaxRetries 2 → initial attempt plus two retries.
	assert.EqualValues(t, 3, fake.calls.Load())
}

func TestGetRates_NonTransientErrorNotRetried(t *testing.T) {
	fake := &fakeProvider{err: fmt.Errorf("%w: bad api key", provider.ErrNonTransient)}
	cache := New(fake, testConfig(), testLogger())

	_, err := cache.GetRates(context.Background(), "USD")
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
	assert.EqualValues(t, 1, fake.calls.Load())
}

func TestGetRates_HonorsCancelledContext(t *testing.T) {
	fake := &fakeProvider{rates: usdEurRates(), block: make(chan struct{})}
	cache := New(fake, testConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cache.GetRates(ctx, "USD")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGetRates_RealTimeDisabledUsesStaticTable(t *testing.T) {
	fake := &fakeProvider{rates: usdEurRates()}
	cfg := testConfig()
	cfg.RealTime = false
	cache := New(fake, cfg, testLogger())

	snap, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, snap.Source)
	assert.EqualValues(t, 0, fake.calls.Load(), "disabled real-time conversion must not hit the provider")

	_, err = cache.GetRates(context.Background(), "XXX")
	require.ErrorIs(t, err, domain.ErrRateUnavailable)
}

func TestWarmUp(t *testing.T) {
	fake := &fakeProvider{rates: usdEurRates()}
	cache := New(fake, testConfig(), testLogger())

	require.NoError(t, cache.WarmUp(context.Background(), "USD"))
	assert.EqualValues(t, 1, fake.calls.Load())

	// Warmed snapshot is served without another provider call.
	_, err := cache.GetRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.EqualValues(t, 1, fake.calls.Load())
}
