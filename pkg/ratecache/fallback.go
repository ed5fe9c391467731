package ratecache

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/saaskit/pricing/pkg/domain"
)

// usdFallbackRates is the static last-resort rate table, expressed against
// USD. Snapshots for other bases are derived by cross-division. The values
// are deliberately coarse; they only exist so a cold cache with a dead
// provider still yields usable prices.
var usdFallbackRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.RequireFromString("0.92"),
	"GBP": decimal.RequireFromString("0.79"),
	"JPY": decimal.RequireFromString("155"),
	"CAD": decimal.RequireFromString("1.36"),
	"AUD": decimal.RequireFromString("1.52"),
	"CHF": decimal.RequireFromString("0.88"),
	"CNY": decimal.RequireFromString("7.20"),
	"INR": decimal.RequireFromString("83.3"),
	"BRL": decimal.RequireFromString("5.40"),
}

// fallbackSnapshot synthesizes a snapshot for the base currency from the
// static table, or nil when the base is not covered.
func fallbackSnapshot(base string, now time.Time) *domain.RateSnapshot {
	baseRate, ok := usdFallbackRates[base]
	if !ok || baseRate.IsZero() {
		return nil
	}
	rates := make(map[string]decimal.Decimal, len(usdFallbackRates))
	for code, usdRate := range usdFallbackRates {
		if code == base {
			continue
		}
		rates[code] = usdRate.Div(baseRate)
	}
	return &domain.RateSnapshot{
		Base:      base,
		Rates:     rates,
		FetchedAt: now,
		Source:    domain.SourceFallback,
	}
}
