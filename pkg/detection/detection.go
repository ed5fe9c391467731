// Package detection resolves a caller's preferred display currency from
// request signals, independent of pricing.
package detection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/saaskit/pricing/pkg/config"
	"github.com/saaskit/pricing/pkg/currency"
	"github.com/saaskit/pricing/pkg/domain"
	"github.com/saaskit/pricing/pkg/repository"
)

// Signals carries the optional per-request hints the resolver evaluates.
type Signals struct {
	UserID         *uuid.UUID
	CountryCode    string
	AcceptLanguage string
}

// Resolver picks a currency by evaluating signals in fixed order: stored
// preference, geolocation country, language region, configured default.
// Each step can be disabled by configuration; a disabled or failing step
// falls through to the next.
type Resolver struct {
	prefs      repository.PreferenceStore
	currencies *currency.Registry
	cfg        config.Detection
	defaultCur string
	logger     *slog.Logger
}

// New creates a detection resolver.
func New(
	prefs repository.PreferenceStore,
	currencies *currency.Registry,
	cfg config.Detection,
	defaultCurrency string,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultCurrency == "" {
		defaultCurrency = currency.DefaultCode
	}
	return &Resolver{
		prefs:      prefs,
		currencies: currencies,
		cfg:        cfg,
		defaultCur: defaultCurrency,
		logger:     logger,
	}
}

// Detect returns the preferred currency for the request. It always succeeds;
// the configured default is the final step.
func (r *Resolver) Detect(ctx context.Context, signals Signals) string {
	if r.cfg.PreferenceEnabled && signals.UserID != nil {
		if code, err := r.prefs.GetCurrency(ctx, *signals.UserID); err == nil {
			if r.currencies.IsSupported(code) {
				return code
			}
			r.logger.Debug("Stored preference not supported, falling through",
				"user_id", *signals.UserID, "code", code)
		}
	}

	if r.cfg.GeoEnabled && signals.CountryCode != "" {
		if code, ok := r.fromCountry(signals.CountryCode); ok {
			return code
		}
	}

	if r.cfg.LanguageEnabled && signals.AcceptLanguage != "" {
		if region, ok := regionFromLanguage(signals.AcceptLanguage); ok {
			if code, ok := r.fromCountry(region); ok {
				return code
			}
		}
	}

	return r.defaultCur
}

// SetPreferred validates and stores a user's currency preference.
func (r *Resolver) SetPreferred(ctx context.Context, userID uuid.UUID, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !r.currencies.IsSupported(code) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedCurrency, code)
	}
	return r.prefs.SetCurrency(ctx, userID, code)
}

// fromCountry maps a country code to a supported currency. Unmapped or
// unsupported results yield no signal.
func (r *Resolver) fromCountry(country string) (string, bool) {
	code, ok := countryCurrency[strings.ToUpper(strings.TrimSpace(country))]
	if !ok || !r.currencies.IsSupported(code) {
		return "", false
	}
	return code, true
}

// regionFromLanguage extracts the region subtag from an Accept-Language
// style value, e.g. "en-US,en;q=0.9" → "US". Tags without a region yield
// no signal.
func regionFromLanguage(header string) (string, bool) {
	first := header
	if i := strings.IndexByte(first, ','); i >= 0 {
		first = first[:i]
	}
	if i := strings.IndexByte(first, ';'); i >= 0 {
		first = first[:i]
	}
	first = strings.TrimSpace(strings.ReplaceAll(first, "_", "-"))

	parts := strings.Split(first, "-")
	for _, part := range parts[1:] {
		if len(part) == 2 && isAlpha(part) {
			return strings.ToUpper(part), true
		}
	}
	return "", false
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			return false
		}
	}
	return true
}
