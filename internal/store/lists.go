package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
)

// ListAccounts returns all of a user's accounts ordered by name.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, currency, balance, valuation_baseline
		FROM accounts WHERE user_id = ? ORDER BY name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccountRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindAccountByName resolves a user's account by exact name.
func (s *Store) FindAccountByName(ctx context.Context, userID, name string) (*domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, type, currency, balance, valuation_baseline
		FROM accounts WHERE user_id = ? AND name = ?
	`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("find account %q: %w", name, err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("find account %q: %w", name, err)
		}
		return nil, fmt.Errorf("account %q: %w", name, domain.ErrNotFound)
	}
	return scanAccountRow(rows)
}

func scanAccountRow(rows *sql.Rows) (*domain.Account, error) {
	var (
		a                  domain.Account
		typ, bal, baseline string
	)
	err := rows.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Currency, &bal, &baseline)
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	a.Type = domain.AccountType(typ)
	if a.Balance, err = decimal.NewFromString(bal); err != nil {
		return nil, fmt.Errorf("corrupt balance %q: %w", bal, err)
	}
	if a.ValuationBaseline, err = decimal.NewFromString(baseline); err != nil {
		return nil, fmt.Errorf("corrupt valuation baseline %q: %w", baseline, err)
	}
	return &a, nil
}

// ListCategories returns all of a user's categories ordered by name.
func (s *Store) ListCategories(ctx context.Context, userID string) ([]*domain.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name FROM categories WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// ListTags returns all of a user's tags ordered by name.
func (s *Store) ListTags(ctx context.Context, userID string) ([]*domain.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name FROM tags WHERE user_id = ? ORDER BY name", userID)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var out []*domain.Tag
	for rows.Next() {
		var t domain.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
