// Package conversion turns rate snapshots into currency conversions.
package conversion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/currency"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/ratecache"
)

// Rate is a resolved conversion rate together with its snapshot metadata.
type Rate struct {
	Value     decimal.Decimal
	FetchedAt time.Time
	Source    string
	Stale     bool
}

// Engine performs support checks and conversions on top of the rate cache.
// When no direct snapshot covers a pair, the cross-rate is computed through
// the configured pivot currency.
type Engine struct {
	cache      *ratecache.Cache
	currencies *currency.Registry
	pivot      string
	logger     *slog.Logger
}

// New creates a conversion engine. pivot is the system default currency used
// for cross-rate computation.
func New(
	cache *ratecache.Cache,
	currencies *currency.Registry,
	pivot string,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:      cache,
		currencies: currencies,
		pivot:      pivot,
		logger:     logger,
	}
}

// IsSupported reports whether the code is in the configured currency set.
// Pure membership check, no I/O.
func (e *Engine) IsSupported(code string) bool {
	return e.currencies.IsSupported(code)
}

// GetRate resolves the conversion rate from one currency to another.
func (e *Engine) GetRate(ctx context.Context, from, to string) (*Rate, error) {
	if !e.IsSupported(from) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, from)
	}
	if !e.IsSupported(to) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, to)
	}

	if from == to {
		return &Rate{
			Value:     decimal.NewFromInt(1),
			FetchedAt: time.Now().UTC(),
			Source:    "identity",
		}, nil
	}

	snap, err := e.cache.GetRates(ctx, from)
	if err == nil {
		if r, ok := snap.Rate(to); ok {
			return e.rateFrom(snap, r), nil
		}
		e.logger.Debug("No direct rate in snapshot, falling back to pivot",
			"from", from, "to", to, "pivot", e.pivot)
	}

	return e.crossRate(ctx, from, to)
}

// crossRate computes rate(from→to) as rate(pivot→to) / rate(pivot→from)
// from the pivot snapshot.
func (e *Engine) crossRate(ctx context.Context, from, to string) (*Rate, error) {
	snap, err := e.cache.GetRates(ctx, e.pivot)
	if err != nil {
		return nil, err
	}

	toRate, err := e.pivotLeg(snap, to)
	if err != nil {
		return nil, err
	}
	fromRate, err := e.pivotLeg(snap, from)
	if err != nil {
		return nil, err
	}

	return e.rateFrom(snap, toRate.Div(fromRate)), nil
}

// pivotLeg returns rate(pivot→code), which is exactly 1 for the pivot itself.
func (e *Engine) pivotLeg(snap *domain.RateSnapshot, code string) (decimal.Decimal, error) {
	if code == e.pivot {
		return decimal.NewFromInt(1), nil
	}
	r, ok := snap.Rate(code)
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("%w: no %s→%s rate",
			domain.ErrRateUnavailable, e.pivot, code)
	}
	return r, nil
}

func (e *Engine) rateFrom(snap *domain.RateSnapshot, value decimal.Decimal) *Rate {
	return &Rate{
		Value:     value,
		FetchedAt: snap.FetchedAt,
		Source:    snap.Source,
		Stale:     snap.Age(time.Now()) > e.cache.TTL(),
	}
}

// Convert applies the resolved rate to an amount. Full precision is kept;
// rounding happens only at the presentation boundary.
func (e *Engine) Convert(
	ctx context.Context,
	amount decimal.Decimal,
	from, to string,
) (*domain.ConversionResult, error) {
	rate, err := e.GetRate(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return &domain.ConversionResult{
		Amount:        amount.Mul(rate.Value),
		From:          from,
		To:            to,
		Rate:          rate.Value,
		RateTimestamp: rate.FetchedAt,
		Stale:         rate.Stale,
	}, nil
}
