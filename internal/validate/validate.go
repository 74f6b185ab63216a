// Package validate checks entries for structural correctness before they
// reach the store.
package validate

import (
	"fmt"

	"github.com/finledger/finledger/internal/domain"
)

// Entry verifies an entry's internal consistency. It does not touch the
// store; ownership checks against accounts happen in the balance engine
// where the account row is already loaded.
func Entry(e *domain.Entry) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required: %w", domain.ErrInvalid)
	}
	if e.UserID == "" {
		return fmt.Errorf("entry user is required: %w", domain.ErrInvalid)
	}
	if e.AccountID == "" {
		return fmt.Errorf("entry account is required: %w", domain.ErrInvalid)
	}
	if !domain.ValidateEntryType(e.Type) {
		return fmt.Errorf("unknown entry type %q: %w", e.Type, domain.ErrInvalid)
	}
	if !domain.ValidateStatus(e.Status) {
		return fmt.Errorf("unknown status %q: %w", e.Status, domain.ErrInvalid)
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("amount must be positive, got %s: %w", e.Amount, domain.ErrInvalid)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("entry date is required: %w", domain.ErrInvalid)
	}
	if e.Description == "" {
		return fmt.Errorf("entry description is required: %w", domain.ErrInvalid)
	}

	if e.Type == domain.EntryTransfer {
		if e.DestAccountID == "" {
			return fmt.Errorf("transfer needs a destination account: %w", domain.ErrInvalid)
		}
		if e.DestAccountID == e.AccountID {
			return fmt.Errorf("transfer source and destination must differ: %w", domain.ErrInvalid)
		}
		if e.CategoryID != "" || len(e.Splits) > 0 {
			return fmt.Errorf("transfers carry no category: %w", domain.ErrInvalid)
		}
		return nil
	}
	if e.DestAccountID != "" {
		return fmt.Errorf("only transfers have a destination account: %w", domain.ErrInvalid)
	}

	if len(e.Splits) > 0 {
		if e.CategoryID != "" {
			return fmt.Errorf("split entries carry categories on the splits: %w", domain.ErrInvalid)
		}
		for i, sp := range e.Splits {
			if sp.CategoryID == "" {
				return fmt.Errorf("split %d needs a category: %w", i, domain.ErrInvalid)
			}
			if !sp.Amount.IsPositive() {
				return fmt.Errorf("split %d amount must be positive: %w", i, domain.ErrInvalid)
			}
		}
		if !e.SplitTotal().Equal(e.Amount) {
			return fmt.Errorf("splits sum to %s, entry amount is %s: %w",
				e.SplitTotal(), e.Amount, domain.ErrInvalid)
		}
	}
	return nil
}
