package pricing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/conversion"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/repository"
)

// LineItem is one priced component of a custom bundle quote.
type LineItem struct {
	ItemID   uuid.UUID
	Name     string
	Kind     domain.ItemKind
	Quantity int64
	Subtotal decimal.Decimal
}

// BundleQuote is the total price of a custom selection in one currency.
// Total is rounded to 2 decimal places half-up; everything upstream of it is
// computed at full precision.
type BundleQuote struct {
	PackageID uuid.UUID
	Currency  string
	Total     decimal.Decimal
	Flat      decimal.Decimal
	Items     []LineItem
	Stale     bool
}

// Calculator prices ad-hoc bundles of features and add-ons on top of a
// package's flat component.
type Calculator struct {
	resolver *Resolver
	engine   *conversion.Engine
	catalog  repository.Catalog
	logger   *slog.Logger
}

// NewCalculator creates a custom bundle price calculator.
func NewCalculator(
	resolver *Resolver,
	engine *conversion.Engine,
	catalog repository.Catalog,
	logger *slog.Logger,
) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{
		resolver: resolver,
		engine:   engine,
		catalog:  catalog,
		logger:   logger,
	}
}

// CalculatePrice composes the selection into a single quoted total.
// Selected ids missing from the catalog are ignored; metered quantities are
// clamped to [0, max]. Deterministic for a fixed catalog and rate snapshot.
func (c *Calculator) CalculatePrice(
	ctx context.Context,
	selection domain.CustomSelection,
	currency string,
) (*BundleQuote, error) {
	if !c.engine.IsSupported(currency) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, currency)
	}

	flat, _, stale, err := c.resolver.resolvePrice(ctx, selection.PackageID, currency)
	if err != nil {
		return nil, err
	}

	ids := selectionItemIDs(selection)
	items, err := c.catalog.GetCatalogItems(ctx, ids)
	if err != nil {
		return nil, err
	}

	// One rate per distinct native currency within this call.
	rates := make(map[string]*conversion.Rate)

	total := flat
	lines := make([]LineItem, 0, len(ids))
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			// Ignore-unknown policy: same result as omitting the id.
			c.logger.Debug("Selection references unknown catalog item, ignoring",
				"item_id", id)
			continue
		}

		qty := itemQuantity(item, selection.Quantities)
		if qty == 0 {
			continue
		}

		rate, ok := rates[item.Currency]
		if !ok {
			rate, err = c.engine.GetRate(ctx, item.Currency, currency)
			if err != nil {
				return nil, err
			}
			rates[item.Currency] = rate
		}
		stale = stale || rate.Stale

		subtotal := item.UnitPrice.Mul(rate.Value).Mul(decimal.NewFromInt(qty))
		total = total.Add(subtotal)
		lines = append(lines, LineItem{
			ItemID:   item.ID,
			Name:     item.Name,
			Kind:     item.Kind,
			Quantity: qty,
			Subtotal: subtotal,
		})
	}

	return &BundleQuote{
		PackageID: selection.PackageID,
		Currency:  currency,
		Total:     total.Round(2),
		Flat:      flat,
		Items:     lines,
		Stale:     stale,
	}, nil
}

// itemQuantity resolves the effective quantity for an item. Non-metered
// items always count once. Metered quantities are clamped: missing or
// negative becomes 0, above the configured maximum is silently capped.
func itemQuantity(item domain.CatalogItem, quantities map[uuid.UUID]int64) int64 {
	if !item.Metered {
		return 1
	}
	qty := quantities[item.ID]
	if qty < 0 {
		qty = 0
	}
	if item.MaxQuantity > 0 && qty > item.MaxQuantity {
		qty = item.MaxQuantity
	}
	return qty
}

// selectionItemIDs returns the deduplicated union of selected feature and
// add-on ids, in selection order.
func selectionItemIDs(sel domain.CustomSelection) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(sel.FeatureIDs)+len(sel.AddonIDs))
	ids := make([]uuid.UUID, 0, len(sel.FeatureIDs)+len(sel.AddonIDs))
	for _, group := range [][]uuid.UUID{sel.FeatureIDs, sel.AddonIDs} {
		for _, id := range group {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
