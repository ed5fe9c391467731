// Package app bundles the engine's services behind one construction point so
// transports and tools share identical wiring.
package app

import (
	"log/slog"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/conversion"
	"github.com/saaskit/pricing/pkg/currency"
	"github.com/saaskit/pricing/pkg/detection"
	"github.com/saaskit/pricing/pkg/pricing"
	"github.com/saaskit/pricing/pkg/provider"
	"github.com/saaskit/pricing/pkg/ratecache"
	"github.com/saaskit/pricing/pkg/repository"
)

// App is the assembled pricing engine.
type App struct {
	Currencies *currency.Registry
	RateCache  *ratecache.Cache
	Conversion *conversion.Engine
	Resolver   *pricing.Resolver
	Calculator *pricing.Calculator
	Detection  *detection.Resolver
}

// New wires the engine from its external collaborators.
func New(
	cfg *config.App,
	rateProvider provider.RateProvider,
	catalog repository.Catalog,
	prefs repository.PreferenceStore,
	logger *slog.Logger,
) *App {
	if logger == nil {
		logger = slog.Default()
	}

	currencies := currency.NewRegistry(cfg.SupportedCurrencies)
	cache := ratecache.New(rateProvider, cfg.Exchange, logger)
	engine := conversion.New(cache, currencies, cfg.DefaultCurrency, logger)
	resolver := pricing.NewResolver(catalog, engine, cfg.PriceCacheTTL, logger)

	return &App{
		Currencies: currencies,
		RateCache:  cache,
		Conversion: engine,
		Resolver:   resolver,
		Calculator: pricing.NewCalculator(resolver, engine, catalog, logger),
		Detection:  detection.New(prefs, currencies, cfg.Detection, cfg.DefaultCurrency, logger),
	}
}
