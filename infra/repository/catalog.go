package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/repository"
)

// CatalogRepository is the gorm-backed catalog and override store.
type CatalogRepository struct {
	db *gorm.DB
}

// Open connects to postgres with the configured DSN.
func Open(cfg config.DB) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.Url), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewCatalogRepository wraps an open gorm connection.
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// Migrate creates the pricing tables. Schema evolution beyond this belongs
// to the external migration tooling.
func (r *CatalogRepository) Migrate() error {
	return r.db.AutoMigrate(
		&PackageModel{},
		&CatalogItemModel{},
		&PackagePriceModel{},
	)
}

// GetPackage returns one package with its item references.
func (r *CatalogRepository) GetPackage(
	ctx context.Context,
	id uuid.UUID,
) (*domain.PricingPackage, error) {
	var model PackageModel
	err := r.db.WithContext(ctx).Preload("Items").First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	pkg := model.toDomain()
	return &pkg, nil
}

// ListPackages returns one page of packages ordered by creation time.
func (r *CatalogRepository) ListPackages(
	ctx context.Context,
	offset, limit int,
) ([]domain.PricingPackage, error) {
	var models []PackageModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Order("created_at").
		Offset(offset).
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	packages := make([]domain.PricingPackage, len(models))
	for i := range models {
		packages[i] = models[i].toDomain()
	}
	return packages, nil
}

// GetCatalogItems returns the catalog entries for the given ids. Unknown
// ids are absent from the result.
func (r *CatalogRepository) GetCatalogItems(
	ctx context.Context,
	ids []uuid.UUID,
) (map[uuid.UUID]domain.CatalogItem, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]domain.CatalogItem{}, nil
	}
	var models []CatalogItemModel
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error
	if err != nil {
		return nil, err
	}
	items := make(map[uuid.UUID]domain.CatalogItem, len(models))
	for i := range models {
		items[models[i].ID] = models[i].toDomain()
	}
	return items, nil
}

// GetPriceOverride returns the override for (packageID, currency).
func (r *CatalogRepository) GetPriceOverride(
	ctx context.Context,
	packageID uuid.UUID,
	currency string,
) (*domain.PackagePrice, error) {
	var model PackagePriceModel
	err := r.db.WithContext(ctx).
		First(&model, "package_id = ? AND currency = ?", packageID, currency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	price := model.toDomain()
	return &price, nil
}

// GetPriceOverrides returns the overrides for a set of packages in one
// currency, keyed by package id.
func (r *CatalogRepository) GetPriceOverrides(
	ctx context.Context,
	packageIDs []uuid.UUID,
	currency string,
) (map[uuid.UUID]domain.PackagePrice, error) {
	if len(packageIDs) == 0 {
		return map[uuid.UUID]domain.PackagePrice{}, nil
	}
	var models []PackagePriceModel
	err := r.db.WithContext(ctx).
		Where("package_id IN ? AND currency = ?", packageIDs, currency).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	overrides := make(map[uuid.UUID]domain.PackagePrice, len(models))
	for i := range models {
		overrides[models[i].PackageID] = models[i].toDomain()
	}
	return overrides, nil
}

// UpsertPriceOverride stores the override as a single atomic row write.
func (r *CatalogRepository) UpsertPriceOverride(
	ctx context.Context,
	price domain.PackagePrice,
) error {
	model := priceModelFrom(price)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "package_id"}, {Name: "currency"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "valid_until", "updated_at"}),
		}).
		Create(&model).Error
}

// DeletePriceOverride removes the override; missing rows are not an error.
func (r *CatalogRepository) DeletePriceOverride(
	ctx context.Context,
	packageID uuid.UUID,
	currency string,
) error {
	return r.db.WithContext(ctx).
		Where("package_id = ? AND currency = ?", packageID, currency).
		Delete(&PackagePriceModel{}).Error
}

var _ repository.Catalog = (*CatalogRepository)(nil)
