// Package pricing resolves package prices in a target currency and quotes
// custom feature bundles.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/conversion"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/repository"
)

// PriceSource records how a quoted price was produced.
type PriceSource string

const (
	SourceOverride  PriceSource = "override"
	SourceConverted PriceSource = "converted"
)

// PackageQuote is the resolved price of one package in one currency.
// Price is rounded to 2 decimal places, half-up.
type PackageQuote struct {
	PackageID uuid.UUID
	Currency  string
	Price     decimal.Decimal
	Source    PriceSource
	Stale     bool
}

// PricedPackage pairs a catalog package with its resolved price for listing
// pages.
type PricedPackage struct {
	Package  domain.PricingPackage
	Currency string
	Price    decimal.Decimal
	Source   PriceSource
	Stale    bool
}

// SetPriceInput is the write payload for a price override.
type SetPriceInput struct {
	PackageID  uuid.UUID       `validate:"required"`
	Currency   string          `validate:"required,len=3,uppercase"`
	Price      decimal.Decimal `validate:"-"`
	ValidUntil *time.Time      `validate:"omitempty"`
}

// Resolver computes per-currency package prices, preferring explicit
// overrides over live conversion.
type Resolver struct {
	catalog  repository.Catalog
	engine   *conversion.Engine
	validate *validator.Validate
	quotes   *quoteCache
	logger   *slog.Logger
}

// NewResolver creates a package price resolver. priceTTL bounds how long a
// resolved quote may be served from memory; zero disables quote caching.
func NewResolver(
	catalog repository.Catalog,
	engine *conversion.Engine,
	priceTTL time.Duration,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		catalog:  catalog,
		engine:   engine,
		validate: validator.New(),
		quotes:   newQuoteCache(priceTTL),
		logger:   logger,
	}
}

// GetPackagePrice resolves the price of one package in the target currency.
// A non-expired override wins; otherwise the base price is converted.
func (r *Resolver) GetPackagePrice(
	ctx context.Context,
	packageID uuid.UUID,
	currency string,
) (*PackageQuote, error) {
	if cached, ok := r.quotes.get(packageID, currency); ok {
		return cached, nil
	}

	price, source, stale, err := r.resolvePrice(ctx, packageID, currency)
	if err != nil {
		return nil, err
	}
	quoted := price
	if source == SourceConverted {
		quoted = price.Round(2)
	}
	quote := PackageQuote{
		PackageID: packageID,
		Currency:  currency,
		Price:     quoted,
		Source:    source,
		Stale:     stale,
	}
	r.quotes.put(quote)
	return &quote, nil
}

// resolvePrice returns the unrounded price so the bundle calculator can keep
// full precision until its own final rounding step. Overrides are returned
// verbatim.
func (r *Resolver) resolvePrice(
	ctx context.Context,
	packageID uuid.UUID,
	currency string,
) (decimal.Decimal, PriceSource, bool, error) {
	if !r.engine.IsSupported(currency) {
		return decimal.Decimal{}, "", false,
			fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, currency)
	}

	override, err := r.catalog.GetPriceOverride(ctx, packageID, currency)
	if err == nil && !override.Expired(time.Now()) {
		return override.Price, SourceOverride, false, nil
	}
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return decimal.Decimal{}, "", false, err
	}

	pkg, err := r.catalog.GetPackage(ctx, packageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return decimal.Decimal{}, "", false,
				fmt.Errorf("%w: %s", domain.ErrPackageNotFound, packageID)
		}
		return decimal.Decimal{}, "", false, err
	}

	res, err := r.engine.Convert(ctx, pkg.BasePrice, pkg.BaseCurrency, currency)
	if err != nil {
		return decimal.Decimal{}, "", false, err
	}
	return res.Amount, SourceConverted, res.Stale, nil
}

// GetPackagesWithPricing prices one page of packages. Conversion rates are
// resolved once per distinct base currency and reused across the page, so
// rate lookups scale with the number of distinct bases, not with pageSize.
func (r *Resolver) GetPackagesWithPricing(
	ctx context.Context,
	page, pageSize int,
	currency string,
) ([]PricedPackage, error) {
	if !r.engine.IsSupported(currency) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, currency)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	packages, err := r.catalog.ListPackages(ctx, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	if len(packages) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(packages))
	for i, p := range packages {
		ids[i] = p.ID
	}
	overrides, err := r.catalog.GetPriceOverrides(ctx, ids, currency)
	if err != nil {
		return nil, err
	}

	rates := make(map[string]*conversion.Rate)
	now := time.Now()

	result := make([]PricedPackage, 0, len(packages))
	for _, pkg := range packages {
		if ov, ok := overrides[pkg.ID]; ok && !ov.Expired(now) {
			result = append(result, PricedPackage{
				Package:  pkg,
				Currency: currency,
				Price:    ov.Price,
				Source:   SourceOverride,
			})
			continue
		}

		rate, ok := rates[pkg.BaseCurrency]
		if !ok {
			rate, err = r.engine.GetRate(ctx, pkg.BaseCurrency, currency)
			if err != nil {
				return nil, err
			}
			rates[pkg.BaseCurrency] = rate
		}

		result = append(result, PricedPackage{
			Package:  pkg,
			Currency: currency,
			Price:    pkg.BasePrice.Mul(rate.Value).Round(2),
			Source:   SourceConverted,
			Stale:    rate.Stale,
		})
	}
	return result, nil
}

// SetPackagePrice validates and upserts a price override. Writes never
// degrade silently; any invalid input fails with ErrInvalidPrice.
func (r *Resolver) SetPackagePrice(ctx context.Context, input SetPriceInput) error {
	if err := r.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPrice, err)
	}
	if input.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0, got %s",
			domain.ErrInvalidPrice, input.Price)
	}
	if !r.engine.IsSupported(input.Currency) {
		return fmt.Errorf("%w: unsupported currency %s",
			domain.ErrInvalidPrice, input.Currency)
	}
	if input.ValidUntil != nil && !input.ValidUntil.After(time.Now()) {
		return fmt.Errorf("%w: validUntil must be in the future",
			domain.ErrInvalidPrice)
	}

	err := r.catalog.UpsertPriceOverride(ctx, domain.PackagePrice{
		PackageID:  input.PackageID,
		Currency:   input.Currency,
		Price:      input.Price,
		ValidUntil: input.ValidUntil,
	})
	if err != nil {
		return err
	}
	r.quotes.drop(input.PackageID, input.Currency)

	r.logger.Info("Price override stored",
		"package_id", input.PackageID,
		"currency", input.Currency,
		"price", input.Price)
	return nil
}

// DeletePackagePrice removes a price override.
func (r *Resolver) DeletePackagePrice(
	ctx context.Context,
	packageID uuid.UUID,
	currency string,
) error {
	if err := r.catalog.DeletePriceOverride(ctx, packageID, currency); err != nil {
		return err
	}
	r.quotes.drop(packageID, currency)
	return nil
}
