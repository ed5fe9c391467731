package pricing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/conversion"
	"github.com/saaskit/pricing/pkg/currency"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/provider"
	"github.com/saaskit/pricing/pkg/ratecache"
	"github.com/saaskit/pricing/pkg/repository"
)

// fakeProvider serves canned snapshots per base currency and counts calls.
type fakeProvider struct {
	calls atomic.Int64
	rates map[string]map[string]decimal.Decimal
}

func (f *fakeProvider) FetchRates(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	f.calls.Add(1)
	rates, ok := f.rates[base]
	if !ok {
		return nil, fmt.Errorf("%w: unknown base %s", provider.ErrNonTransient, base)
	}
	return &domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: time.Now().UTC(),
		Source:    domain.SourceLive,
	}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

// memCatalog is an in-memory repository.Catalog.
type memCatalog struct {
	packages  map[uuid.UUID]domain.PricingPackage
	items     map[uuid.UUID]domain.CatalogItem
	overrides map[string]domain.PackagePrice // packageID:currency
	order     []uuid.UUID                    // listing order
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		packages:  make(map[uuid.UUID]domain.PricingPackage),
		items:     make(map[uuid.UUID]domain.CatalogItem),
		overrides: make(map[string]domain.PackagePrice),
	}
}

func overrideKey(id uuid.UUID, currency string) string {
	return id.String() + ":" + currency
}

func (m *memCatalog) addPackage(p domain.PricingPackage) {
	m.packages[p.ID] = p
	m.order = append(m.order, p.ID)
}

func (m *memCatalog) GetPackage(ctx context.Context, id uuid.UUID) (*domain.PricingPackage, error) {
	p, ok := m.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) ListPackages(ctx context.Context, offset, limit int) ([]domain.PricingPackage, error) {
	if offset >= len(m.order) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.order) {
		end = len(m.order)
	}
	page := make([]domain.PricingPackage, 0, end-offset)
	for _, id := range m.order[offset:end] {
		page = append(page, m.packages[id])
	}
	return page, nil
}

func (m *memCatalog) GetCatalogItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.CatalogItem, error) {
	found := make(map[uuid.UUID]domain.CatalogItem)
	for _, id := range ids {
		if item, ok := m.items[id]; ok {
			found[id] = item
		}
	}
	return found, nil
}

func (m *memCatalog) GetPriceOverride(ctx context.Context, packageID uuid.UUID, currency string) (*domain.PackagePrice, error) {
	p, ok := m.overrides[overrideKey(packageID, currency)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memCatalog) GetPriceOverrides(ctx context.Context, packageIDs []uuid.UUID, currency string) (map[uuid.UUID]domain.PackagePrice, error) {
	found := make(map[uuid.UUID]domain.PackagePrice)
	for _, id := range packageIDs {
		if p, ok := m.overrides[overrideKey(id, currency)]; ok {
			found[id] = p
		}
	}
	return found, nil
}

func (m *memCatalog) UpsertPriceOverride(ctx context.Context, price domain.PackagePrice) error {
	m.overrides[overrideKey(price.PackageID, price.Currency)] = price
	return nil
}

func (m *memCatalog) DeletePriceOverride(ctx context.Context, packageID uuid.UUID, currency string) error {
	delete(m.overrides, overrideKey(packageID, currency))
	return nil
}

var _ repository.Catalog = (*memCatalog)(nil)

// newTestEngine builds a conversion engine over the fake provider with USD
// as the pivot currency.
func newTestEngine(t *testing.T, fake *fakeProvider) *conversion.Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.ExchangeRate{
		CacheTTL:     time.Minute,
		MaxRetries:   0,
		RetryBackoff: time.Millisecond,
		RealTime:     true,
	}
	cache := ratecache.New(fake, cfg, logger)
	currencies := currency.NewRegistry([]string{"USD", "EUR", "GBP", "JPY"})
	return conversion.New(cache, currencies, "USD", logger)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func usdRates() map[string]map[string]decimal.Decimal {
	return map[string]map[string]decimal.Decimal{
		"USD": {
			"EUR": decimal.RequireFromString("0.90"),
			"GBP": decimal.RequireFromString("0.75"),
			"JPY": decimal.RequireFromString("150"),
		},
	}
}
