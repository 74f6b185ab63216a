package domain

import "errors"

// Sentinel errors shared across packages. Callers distinguish conditions
// with errors.Is rather than string matching.
var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an insert collided with an existing ID.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalid indicates an entry or account failed validation.
	ErrInvalid = errors.New("invalid")

	// ErrReconciled indicates an attempt to mutate a reconciled entry.
	ErrReconciled = errors.New("entry is reconciled")

	// ErrCrossUser indicates an entry references a category or account
	// owned by a different user.
	ErrCrossUser = errors.New("cross-user reference")

	// ErrNoRows indicates a source yielded zero usable rows.
	ErrNoRows = errors.New("no usable rows in input")

	// ErrRateNotFound indicates the provider has no rate for the pair.
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrRateUnavailable indicates the rate provider could not be reached.
	ErrRateUnavailable = errors.New("exchange rate service unavailable")
)
