// Package repository implements the catalog and price-override contracts on
// postgres via gorm.
package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/domain"
)

// PackageModel is the gorm model for catalog packages.
type PackageModel struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Title        string             `gorm:"size:255;not null"`
	Description  string             `gorm:"type:text"`
	BasePrice    decimal.Decimal    `gorm:"type:numeric(20,6);not null"`
	BaseCurrency string             `gorm:"size:3;not null"`
	Type         string             `gorm:"size:16;not null;default:fixed"`
	Items        []CatalogItemModel `gorm:"many2many:package_catalog_items"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName overrides the default table name.
func (PackageModel) TableName() string { return "packages" }

// CatalogItemModel is the gorm model for features and add-ons.
type CatalogItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Name        string          `gorm:"size:255;not null"`
	Kind        string          `gorm:"size:16;not null"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	Currency    string          `gorm:"size:3;not null"`
	Metered     bool            `gorm:"not null;default:false"`
	MaxQuantity int64           `gorm:"not null;default:0"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (CatalogItemModel) TableName() string { return "catalog_items" }

// PackagePriceModel is the gorm model for per-currency price overrides.
// (package_id, currency) is the natural key the upsert conflicts on.
type PackagePriceModel struct {
	PackageID  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Currency   string          `gorm:"size:3;primaryKey"`
	Price      decimal.Decimal `gorm:"type:numeric(20,6);not null"`
	ValidUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (PackagePriceModel) TableName() string { return "package_prices" }

func (m *PackageModel) toDomain() domain.PricingPackage {
	itemIDs := make([]uuid.UUID, len(m.Items))
	for i, it := range m.Items {
		itemIDs[i] = it.ID
	}
	return domain.PricingPackage{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		BasePrice:    m.BasePrice,
		BaseCurrency: m.BaseCurrency,
		Type:         domain.PackageType(m.Type),
		ItemIDs:      itemIDs,
	}
}

func (m *CatalogItemModel) toDomain() domain.CatalogItem {
	return domain.CatalogItem{
		ID:          m.ID,
		Name:        m.Name,
		Kind:        domain.ItemKind(m.Kind),
		UnitPrice:   m.UnitPrice,
		Currency:    m.Currency,
		Metered:     m.Metered,
		MaxQuantity: m.MaxQuantity,
	}
}

func (m *PackagePriceModel) toDomain() domain.PackagePrice {
	return domain.PackagePrice{
		PackageID:  m.PackageID,
		Currency:   m.Currency,
		Price:      m.Price,
		ValidUntil: m.ValidUntil,
	}
}

func priceModelFrom(p domain.PackagePrice) PackagePriceModel {
	return PackagePriceModel{
		PackageID:  p.PackageID,
		Currency:   p.Currency,
		Price:      p.Price,
		ValidUntil: p.ValidUntil,
	}
}
