// Package provider defines the contract for upstream exchange-rate sources.
package provider

import (
	"context"
	"errors"

	"github.com/saaskit/pricing/pkg/domain"
)

// RateProvider fetches the full rate table for one base currency.
type RateProvider interface {
	// FetchRates issues one upstream request for the given base currency.
	// The returned snapshot carries live provenance and the fetch timestamp.
	FetchRates(ctx context.Context, base string) (*domain.RateSnapshot, error)

	// Name identifies the provider in logs.
	Name() string
}

// Classification markers for provider failures. Transient errors (timeouts,
// server errors) are retried by the rate cache; non-transient errors abort
// the refresh immediately.
var (
	ErrTransient    = errors.New("transient provider error")
	ErrNonTransient = errors.New("non-transient provider error")
)

// IsTransient reports whether the error is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
