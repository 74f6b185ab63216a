package balance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/validate"
)

// BulkChange describes the fields a bulk update sets. Nil fields are left
// untouched; TagIDs replaces the whole tag set when non-nil.
type BulkChange struct {
	CategoryID *string
	TagIDs     []string
	Status     *domain.ClearingStatus
}

// BulkResult counts the outcome of a bulk operation.
type BulkResult struct {
	Affected int
	Skipped int // reconciled entries, left untouched
}

// BulkUpdate applies a change to every listed entry in one transaction.
// Reconciled entries are skipped and counted, not failed: a bulk
// recategorization should not abort because one row is locked.
func (g *Engine) BulkUpdate(ctx context.Context, userID string, ids []string, change BulkChange) (*BulkResult, error) {
	if change.CategoryID == nil && change.TagIDs == nil && change.Status == nil {
		return nil, fmt.Errorf("bulk update with no changes: %w", domain.ErrInvalid)
	}
	if change.Status != nil && !domain.ValidateStatus(*change.Status) {
		return nil, fmt.Errorf("unknown status %q: %w", *change.Status, domain.ErrInvalid)
	}
	result := &BulkResult{}
	err := g.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			e, err := g.store.GetEntry(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.UserID != userID {
				return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
			}
			if e.Status == domain.StatusReconciled {
				result.Skipped++
				continue
			}
			if change.CategoryID != nil {
				e.CategoryID = *change.CategoryID
			}
			if change.TagIDs != nil {
				e.TagIDs = append([]string(nil), change.TagIDs...)
			}
			if change.Status != nil {
				e.Status = *change.Status
			}
			if err := validate.Entry(e); err != nil {
				return fmt.Errorf("entry %s: %w", id, err)
			}
			if err := g.checkOwnership(ctx, tx, e); err != nil {
				return err
			}
			// Category and tag changes carry no balance effects.
			if err := g.store.UpdateEntry(ctx, tx, e); err != nil {
				return err
			}
			result.Affected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// BulkDelete removes the listed entries, backing each one's effects out of
// the account balances. Reconciled entries are skipped.
func (g *Engine) BulkDelete(ctx context.Context, userID string, ids []string) (*BulkResult, error) {
	result := &BulkResult{}
	err := g.store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			e, err := g.store.GetEntry(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.UserID != userID {
				return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
			}
			if e.Status == domain.StatusReconciled {
				result.Skipped++
				continue
			}
			if err := g.applyEffects(ctx, tx, negate(e.Effects())); err != nil {
				return err
			}
			if err := g.store.DeleteEntry(ctx, tx, id); err != nil {
				return err
			}
			result.Affected++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
