// Package services defines the business logic for the product catalogue.
// This file centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer. The three-way split the handlers rely on is:
//   - nil error                → success
//   - ErrProductNotFound       → absence (lookup-by-id only)
//   - anything else            → data-access failure
//
// No outcome may be silently dropped: every handler maps each branch to
// exactly one HTTP response.
package services

import "errors"

// Product-related errors.
var (
	// ErrProductNotFound indicates that the requested product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrEmptyProduct is returned when a save request carries no usable
	// product data (e.g., a blank name). Presence is the only schema check
	// the service performs.
	ErrEmptyProduct = errors.New("product data is missing")
)
