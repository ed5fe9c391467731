package domain

import "errors"

var (
	// ErrUnsupportedCurrency is returned when a currency code is not in the
	// configured supported set. Never retried.
	ErrUnsupportedCurrency = errors.New("unsupported currency")

	// ErrRateUnavailable is returned when no rate snapshot can be obtained
	// and fallback is disabled or exhausted.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrPackageNotFound is returned for an unknown package id.
	ErrPackageNotFound = errors.New("package not found")

	// ErrInvalidPrice is returned when a price override write fails
	// validation: negative price, unsupported currency or past expiry.
	ErrInvalidPrice = errors.New("invalid price value")
)
