// Package domain holds the core value types of the pricing engine.
//
// Invariants:
//   - Monetary amounts and rates are exact decimals, never binary floats.
//   - A RateSnapshot is immutable once constructed; refreshes replace the
//     whole snapshot, they never mutate it in place.
//   - Currency codes are 3-letter uppercase ISO 4217 strings.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Snapshot provenance values.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Currency describes one supported currency.
type Currency struct {
	Code   string
	Name   string
	Active bool
}

// RateSnapshot is the set of exchange rates fetched at one point in time for
// one base currency. Never mutate a published snapshot.
type RateSnapshot struct {
	Base      string
	Rates     map[string]decimal.Decimal
	FetchedAt time.Time
	Source    string
}

// Rate returns the rate from the snapshot base to the given currency.
func (s *RateSnapshot) Rate(to string) (decimal.Decimal, bool) {
	r, ok := s.Rates[to]
	return r, ok
}

// Age reports how long ago the snapshot was fetched.
func (s *RateSnapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.FetchedAt)
}

// PackageType distinguishes fixed-price packages from custom bundles.
type PackageType string

const (
	PackageFixed  PackageType = "fixed"
	PackageCustom PackageType = "custom"
)

// PricingPackage is a catalog subscription package.
type PricingPackage struct {
	ID           uuid.UUID
	Title        string
	Description  string
	BasePrice    decimal.Decimal
	BaseCurrency string
	Type         PackageType
	ItemIDs      []uuid.UUID
}

// PackagePrice is an explicit per-currency override for a package. While not
// expired it takes precedence over any computed conversion.
type PackagePrice struct {
	PackageID  uuid.UUID
	Currency   string
	Price      decimal.Decimal
	ValidUntil *time.Time
}

// Expired reports whether the override has passed its expiry. Overrides
// without an expiry never expire.
func (p *PackagePrice) Expired(now time.Time) bool {
	return p.ValidUntil != nil && now.After(*p.ValidUntil)
}

// ItemKind distinguishes features from add-ons in the catalog.
type ItemKind string

const (
	ItemFeature ItemKind = "feature"
	ItemAddon   ItemKind = "addon"
)

// CatalogItem is a feature or add-on that can be selected into a custom
// bundle. MaxQuantity of 0 means the metered quantity is uncapped.
type CatalogItem struct {
	ID          uuid.UUID
	Name        string
	Kind        ItemKind
	UnitPrice   decimal.Decimal
	Currency    string
	Metered     bool
	MaxQuantity int64
}

// CustomSelection is a caller-chosen bundle priced on demand. It is
// request-scoped and never persisted.
type CustomSelection struct {
	PackageID  uuid.UUID
	FeatureIDs []uuid.UUID
	AddonIDs   []uuid.UUID
	Quantities map[uuid.UUID]int64
}

// ConversionResult carries a converted amount together with the rate that
// produced it.
type ConversionResult struct {
	Amount        decimal.Decimal
	From          string
	To            string
	Rate          decimal.Decimal
	RateTimestamp time.Time
	Stale         bool
}
