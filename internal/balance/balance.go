// Package balance owns every entry mutation. Account balances are derived
// state: they change only here, inside the same transaction as the entry
// write, so the sum-of-effects invariant holds at every commit point.
package balance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/store"
	"github.com/finledger/finledger/internal/validate"
)

// Engine applies entry mutations and their balance effects atomically.
type Engine struct {
	store *store.Store
}

func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// Create validates and persists a new entry and applies its balance
// effects in one transaction.
func (g *Engine) Create(ctx context.Context, e *domain.Entry) error {
	return g.store.WithTx(ctx, func(tx *sql.Tx) error {
		return g.CreateTx(ctx, tx, e)
	})
}

// CreateTx is Create inside a caller-owned transaction. Import batches use
// it so a whole batch commits or rolls back together.
func (g *Engine) CreateTx(ctx context.Context, tx *sql.Tx, e *domain.Entry) error {
	if err := validate.Entry(e); err != nil {
		return err
	}
	if err := g.checkOwnership(ctx, tx, e); err != nil {
		return err
	}
	if err := g.store.InsertEntry(ctx, tx, e); err != nil {
		return err
	}
	return g.applyEffects(ctx, tx, e.Effects())
}

// Update replaces an entry. The old entry's effects are reversed and the
// new entry's applied, so the account balance moves by exactly the
// difference. Reconciled entries accept only a status demotion.
func (g *Engine) Update(ctx context.Context, e *domain.Entry) error {
	if err := validate.Entry(e); err != nil {
		return err
	}
	return g.store.WithTx(ctx, func(tx *sql.Tx) error {
		old, err := g.store.GetEntry(ctx, tx, e.ID)
		if err != nil {
			return err
		}
		if old.UserID != e.UserID {
			return fmt.Errorf("entry %s: %w", e.ID, domain.ErrCrossUser)
		}
		if old.Status == domain.StatusReconciled && !isStatusDemotion(old, e) {
			return fmt.Errorf("entry %s: %w", e.ID, domain.ErrReconciled)
		}
		if err := g.checkOwnership(ctx, tx, e); err != nil {
			return err
		}
		if err := g.applyEffects(ctx, tx, negate(old.Effects())); err != nil {
			return err
		}
		if err := g.store.UpdateEntry(ctx, tx, e); err != nil {
			return err
		}
		return g.applyEffects(ctx, tx, e.Effects())
	})
}

// Delete removes an entry and backs its effects out of the account
// balances. Reconciled entries cannot be deleted; demote them first.
func (g *Engine) Delete(ctx context.Context, userID, id string) error {
	return g.store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := g.store.GetEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
		}
		if e.Status == domain.StatusReconciled {
			return fmt.Errorf("delete entry %s: %w", id, domain.ErrReconciled)
		}
		if err := g.applyEffects(ctx, tx, negate(e.Effects())); err != nil {
			return err
		}
		return g.store.DeleteEntry(ctx, tx, id)
	})
}

// Reverse voids an entry without deleting it: the row stays for audit but
// stops contributing to balances.
func (g *Engine) Reverse(ctx context.Context, userID, id string) error {
	return g.store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := g.store.GetEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
		}
		if e.Status == domain.StatusReconciled {
			return fmt.Errorf("reverse entry %s: %w", id, domain.ErrReconciled)
		}
		if e.Reversed {
			return fmt.Errorf("entry %s already reversed: %w", id, domain.ErrInvalid)
		}
		if err := g.applyEffects(ctx, tx, negate(e.Effects())); err != nil {
			return err
		}
		e.Reversed = true
		return g.store.UpdateEntry(ctx, tx, e)
	})
}

// SetStatus moves an entry through the clearing lifecycle. Status changes
// never touch balances, and demotion is the one mutation a reconciled
// entry accepts.
func (g *Engine) SetStatus(ctx context.Context, userID, id string, status domain.ClearingStatus) error {
	if !domain.ValidateStatus(status) {
		return fmt.Errorf("unknown status %q: %w", status, domain.ErrInvalid)
	}
	return g.store.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := g.store.GetEntry(ctx, tx, id)
		if err != nil {
			return err
		}
		if e.UserID != userID {
			return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
		}
		if e.Status == status {
			return nil
		}
		e.Status = status
		return g.store.UpdateEntry(ctx, tx, e)
	})
}

// CompleteReconciliation marks the given entries reconciled and returns
// the variance between the statement balance and the account's reported
// balance. A zero variance means the books agree with the bank.
func (g *Engine) CompleteReconciliation(ctx context.Context, userID, accountID string, entryIDs []string, statementBalance decimal.Decimal) (decimal.Decimal, error) {
	var variance decimal.Decimal
	err := g.store.WithTx(ctx, func(tx *sql.Tx) error {
		acct, err := g.store.GetAccount(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if acct.UserID != userID {
			return fmt.Errorf("account %s: %w", accountID, domain.ErrCrossUser)
		}
		for _, id := range entryIDs {
			e, err := g.store.GetEntry(ctx, tx, id)
			if err != nil {
				return err
			}
			if e.UserID != userID {
				return fmt.Errorf("entry %s: %w", id, domain.ErrCrossUser)
			}
			if e.AccountID != accountID && e.DestAccountID != accountID {
				return fmt.Errorf("entry %s does not touch account %s: %w", id, accountID, domain.ErrInvalid)
			}
			if e.Status == domain.StatusReconciled {
				continue
			}
			e.Status = domain.StatusReconciled
			if err := g.store.UpdateEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		variance = statementBalance.Sub(acct.Balance.Add(acct.ValuationBaseline))
		return nil
	})
	return variance, err
}

// checkOwnership verifies the entry's account, destination account, and
// category belong to the entry's user.
func (g *Engine) checkOwnership(ctx context.Context, tx *sql.Tx, e *domain.Entry) error {
	acct, err := g.store.GetAccount(ctx, tx, e.AccountID)
	if err != nil {
		return err
	}
	if acct.UserID != e.UserID {
		return fmt.Errorf("account %s: %w", e.AccountID, domain.ErrCrossUser)
	}
	if e.DestAccountID != "" {
		dest, err := g.store.GetAccount(ctx, tx, e.DestAccountID)
		if err != nil {
			return err
		}
		if dest.UserID != e.UserID {
			return fmt.Errorf("account %s: %w", e.DestAccountID, domain.ErrCrossUser)
		}
	}
	if e.CategoryID != "" {
		cat, err := g.store.GetCategory(ctx, tx, e.CategoryID)
		if err != nil {
			return err
		}
		if cat.UserID != e.UserID {
			return fmt.Errorf("category %s: %w", e.CategoryID, domain.ErrCrossUser)
		}
	}
	return nil
}

func (g *Engine) applyEffects(ctx context.Context, tx *sql.Tx, effects []domain.Effect) error {
	for _, ef := range effects {
		if err := g.store.AdjustBalance(ctx, tx, ef.AccountID, ef.Delta); err != nil {
			return err
		}
	}
	return nil
}

func negate(effects []domain.Effect) []domain.Effect {
	out := make([]domain.Effect, len(effects))
	for i, ef := range effects {
		out[i] = domain.Effect{AccountID: ef.AccountID, Delta: ef.Delta.Neg()}
	}
	return out
}

// isStatusDemotion reports whether upd differs from old only by a status
// move away from reconciled.
func isStatusDemotion(old, upd *domain.Entry) bool {
	if upd.Status == domain.StatusReconciled {
		return false
	}
	cmp := upd.Clone()
	cmp.Status = old.Status
	return entriesEqual(old, cmp)
}

func entriesEqual(a, b *domain.Entry) bool {
	if a.AccountID != b.AccountID || a.DestAccountID != b.DestAccountID ||
		!a.Amount.Equal(b.Amount) || a.Type != b.Type || !a.Date.Equal(b.Date) ||
		a.Description != b.Description || a.Payee != b.Payee || a.Notes != b.Notes ||
		a.CategoryID != b.CategoryID || a.Currency != b.Currency ||
		a.Flagged != b.Flagged || a.NeedsReview != b.NeedsReview ||
		a.Excluded != b.Excluded || a.Reversed != b.Reversed {
		return false
	}
	if len(a.TagIDs) != len(b.TagIDs) || len(a.Splits) != len(b.Splits) {
		return false
	}
	for i := range a.TagIDs {
		if a.TagIDs[i] != b.TagIDs[i] {
			return false
		}
	}
	for i := range a.Splits {
		if a.Splits[i].CategoryID != b.Splits[i].CategoryID ||
			!a.Splits[i].Amount.Equal(b.Splits[i].Amount) ||
			a.Splits[i].Note != b.Splits[i].Note {
			return false
		}
	}
	return true
}
