// Package currency maintains the registry of currencies the engine accepts.
// Only registered, active codes are valid inputs anywhere in the engine.
package currency

import (
	"sort"
	"strings"
	"sync"

	"github.com/saaskit/pricing/pkg/domain"
)

// DefaultCode is the fallback currency code.
const DefaultCode = "USD"

// displayNames maps well-known codes to a human readable name. Codes outside
// this table are registered with the code itself as the name.
var displayNames = map[string]string{
	"USD": "US Dollar",
	"EUR": "Euro",
	"GBP": "British Pound",
	"JPY": "Japanese Yen",
	"CAD": "Canadian Dollar",
	"AUD": "Australian Dollar",
	"CHF": "Swiss Franc",
	"CNY": "Chinese Yuan",
	"INR": "Indian Rupee",
	"BRL": "Brazilian Real",
	"TRY": "Turkish Lira",
	"RUB": "Russian Ruble",
}

// Registry holds the configured supported currency set.
type Registry struct {
	mu         sync.RWMutex
	currencies map[string]domain.Currency
}

// NewRegistry builds a registry from the configured list of supported codes.
// Codes are normalized to uppercase; malformed entries are dropped.
func NewRegistry(codes []string) *Registry {
	r := &Registry{currencies: make(map[string]domain.Currency, len(codes))}
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !validCode(code) {
			continue
		}
		name := displayNames[code]
		if name == "" {
			name = code
		}
		r.currencies[code] = domain.Currency{Code: code, Name: name, Active: true}
	}
	return r
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return false
		}
	}
	return true
}

// IsSupported reports whether the code is registered and active.
func (r *Registry) IsSupported(code string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[code]
	return ok && c.Active
}

// Get returns the currency for the given code.
func (r *Registry) Get(code string) (domain.Currency, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.currencies[code]
	return c, ok
}

// Deactivate marks a currency inactive without removing it. Inactive codes
// are rejected everywhere a supported currency is required.
func (r *Registry) Deactivate(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.currencies[code]; ok {
		c.Active = false
		r.currencies[code] = c
	}
}

// List returns the supported codes in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.currencies))
	for code, c := range r.currencies {
		if c.Active {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
