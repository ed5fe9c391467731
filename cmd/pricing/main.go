// Command pricing wires the pricing engine together: configuration, stores,
// rate cache and services. It warms the rate cache for the default currency
// and then waits for a shutdown signal; transports mount the services from
// their own processes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaskit/pricing/infra/preference"
	infraprovider "github.com/saaskit/pricing/infra/provider"
	infrarepo "github.com/saaskit/pricing/infra/repository"
	"github.com/saaskit/pricing/pkg/app"
	"github.com/saaskit/pricing/pkg/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("pricing engine exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := infrarepo.Open(cfg.DB)
	if err != nil {
		return err
	}
	catalog := infrarepo.NewCatalogRepository(db)
	if err := catalog.Migrate(); err != nil {
		return fmt.Errorf("failed to migrate pricing tables: %w", err)
	}

	prefs := preference.New(cfg.Redis, logger)
	defer prefs.Close() //nolint:errcheck

	client := infraprovider.NewExchangeRateAPIClient(cfg.Exchange, logger)
	engine := app.New(cfg, client, catalog, prefs, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := engine.RateCache.WarmUp(warmCtx, cfg.DefaultCurrency); err != nil {
		logger.Warn("Rate cache warm-up incomplete", "error", err)
	}

	logger.Info("Pricing engine ready",
		"default_currency", cfg.DefaultCurrency,
		"supported_currencies", len(engine.Currencies.List()),
	)

	<-ctx.Done()
	logger.Info("Shutting down pricing engine")
	return nil
}
