// Package repository defines the persistence contracts the pricing engine
// reads through. Implementations live under infra/.
package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/saaskit/pricing/pkg/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Catalog provides read access to packages and catalog items, plus CRUD on
// per-currency price overrides. The engine assumes atomic single-row upserts
// and treats reads as a consistent-enough snapshot for one computation.
type Catalog interface {
	// GetPackage returns the package with the given id, or ErrNotFound.
	GetPackage(ctx context.Context, id uuid.UUID) (*domain.PricingPackage, error)

	// ListPackages returns one page of packages.
	ListPackages(ctx context.Context, offset, limit int) ([]domain.PricingPackage, error)

	// GetCatalogItems returns the catalog entries for the given ids.
	// Unknown ids are simply absent from the result.
	GetCatalogItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.CatalogItem, error)

	// GetPriceOverride returns the override for (packageID, currency),
	// or ErrNotFound.
	GetPriceOverride(ctx context.Context, packageID uuid.UUID, currency string) (*domain.PackagePrice, error)

	// GetPriceOverrides returns the overrides for the given packages in
	// one currency, keyed by package id.
	GetPriceOverrides(ctx context.Context, packageIDs []uuid.UUID, currency string) (map[uuid.UUID]domain.PackagePrice, error)

	// UpsertPriceOverride stores the override, replacing any existing row
	// for the same (packageID, currency).
	UpsertPriceOverride(ctx context.Context, price domain.PackagePrice) error

	// DeletePriceOverride removes the override for (packageID, currency).
	// Deleting a missing override is not an error.
	DeletePriceOverride(ctx context.Context, packageID uuid.UUID, currency string) error
}

// PreferenceStore keeps each user's preferred currency.
type PreferenceStore interface {
	// GetCurrency returns the stored currency code, or ErrNotFound.
	GetCurrency(ctx context.Context, userID uuid.UUID) (string, error)

	// SetCurrency stores the currency code for the user.
	SetCurrency(ctx context.Context, userID uuid.UUID, code string) error
}
