// Package store provides sqlite persistence for the ledger. Account
// balances live here but are written only through the balance engine; no
// other code path may touch them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/finledger/finledger/internal/domain"
)

const schemaVersion = 1

const schema = `
CREATE TABLE IF NOT EXISTS schema_meta (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS accounts (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	name               TEXT NOT NULL,
	type               TEXT NOT NULL,
	currency           TEXT NOT NULL DEFAULT 'USD',
	balance            TEXT NOT NULL DEFAULT '0',
	valuation_baseline TEXT NOT NULL DEFAULT '0'
);

CREATE TABLE IF NOT EXISTS categories (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name    TEXT NOT NULL,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS tags (
	id      TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name    TEXT NOT NULL,
	UNIQUE(user_id, name)
);

CREATE TABLE IF NOT EXISTS entries (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL,
	account_id      TEXT NOT NULL REFERENCES accounts(id),
	dest_account_id TEXT REFERENCES accounts(id),
	amount          TEXT NOT NULL,
	type            TEXT NOT NULL,
	date            TEXT NOT NULL,
	description     TEXT NOT NULL,
	payee           TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT 'uncleared',
	category_id     TEXT REFERENCES categories(id),
	currency        TEXT NOT NULL DEFAULT '',
	flagged         INTEGER NOT NULL DEFAULT 0,
	needs_review    INTEGER NOT NULL DEFAULT 0,
	excluded        INTEGER NOT NULL DEFAULT 0,
	reversed        INTEGER NOT NULL DEFAULT 0,
	created_at      TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS entry_tags (
	entry_id TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	tag_id   TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
	PRIMARY KEY (entry_id, tag_id)
);

CREATE TABLE IF NOT EXISTS entry_splits (
	entry_id    TEXT NOT NULL REFERENCES entries(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	category_id TEXT NOT NULL REFERENCES categories(id),
	amount      TEXT NOT NULL,
	note        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (entry_id, seq)
);

CREATE TABLE IF NOT EXISTS rules (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	priority   INTEGER NOT NULL DEFAULT 0,
	enabled    INTEGER NOT NULL DEFAULT 1,
	field      TEXT NOT NULL,
	match_type TEXT NOT NULL,
	pattern    TEXT NOT NULL,
	category_id TEXT,
	actions    TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_entries_user_date ON entries(user_id, date);
CREATE INDEX IF NOT EXISTS idx_entries_account ON entries(account_id);
CREATE INDEX IF NOT EXISTS idx_entries_payee ON entries(user_id, payee);
CREATE INDEX IF NOT EXISTS idx_rules_user ON rules(user_id, priority DESC);
`

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and ensures the schema
// exists. ":memory:" is accepted for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Serialized access: sqlite allows one writer, and the balance
	// invariant depends on mutations not interleaving.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if err := ensureVersion(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func ensureVersion(db *sql.DB) error {
	var ver int
	err := db.QueryRow("SELECT version FROM schema_meta LIMIT 1").Scan(&ver)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.Exec("INSERT INTO schema_meta (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("check schema version: %w", err)
	case ver != schemaVersion:
		return fmt.Errorf("unsupported schema version %d (want %d)", ver, schemaVersion)
	}
	return nil
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DBTX is satisfied by *sql.DB and *sql.Tx so queries can run either inside
// or outside an explicit transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB exposes the raw handle for read paths that do not need a transaction.
func (s *Store) DB() DBTX {
	return s.db
}

// WithTx runs fn inside a transaction, rolling back on error or panic.
// Every entry mutation goes through here so the balance invariant is never
// observable half-applied.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is a no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// WithSavepoint runs fn inside a named savepoint on an open transaction.
// Import batches use it so one bad row rolls back alone while the batch
// transaction survives.
func WithSavepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s after %v: %w", name, err, rbErr)
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); relErr != nil {
			return fmt.Errorf("release savepoint %s after rollback: %w", name, relErr)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, a *domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, type, currency, balance, valuation_baseline)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Name, string(a.Type), a.Currency, a.Balance.String(), a.ValuationBaseline.String())
	if err != nil {
		return fmt.Errorf("insert account %s: %w", a.Name, err)
	}
	return nil
}

// GetAccount fetches one account.
func (s *Store) GetAccount(ctx context.Context, q DBTX, id string) (*domain.Account, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, user_id, name, type, currency, balance, valuation_baseline
		FROM accounts WHERE id = ?
	`, id)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*domain.Account, error) {
	var (
		a                  domain.Account
		typ, bal, baseline string
	)
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Currency, &bal, &baseline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account: %w", domain.ErrNotFound)
	}
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

// AdjustBalance applies a signed delta to an account balance. Reserved for
// the balance engine; nothing else may call it.
func (s *Store) AdjustBalance(ctx context.Context, tx *sql.Tx, accountID string, delta decimal.Decimal) error {
	cur, err := s.GetAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}
	next := cur.Balance.Add(delta)
	res, err := tx.ExecContext(ctx, "UPDATE accounts SET balance = ? WHERE id = ?", next.String(), accountID)
	if err != nil {
		return fmt.Errorf("adjust balance of %s: %w", accountID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return nil
}

// SetValuationBaseline records an external valuation mark for an account.
func (s *Store) SetValuationBaseline(ctx context.Context, accountID string, baseline decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE accounts SET valuation_baseline = ? WHERE id = ?", baseline.String(), accountID)
	if err != nil {
		return fmt.Errorf("set valuation baseline of %s: %w", accountID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return nil
}

// CreateCategory inserts a category.
func (s *Store) CreateCategory(ctx context.Context, c *domain.Category) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO categories (id, user_id, name) VALUES (?, ?, ?)", c.ID, c.UserID, c.Name)
	if err != nil {
		return fmt.Errorf("insert category %s: %w", c.Name, err)
	}
	return nil
}

// GetCategory fetches one category.
func (s *Store) GetCategory(ctx context.Context, q DBTX, id string) (*domain.Category, error) {
	var c domain.Category
	err := q.QueryRowContext(ctx,
		"SELECT id, user_id, name FROM categories WHERE id = ?", id).
		Scan(&c.ID, &c.UserID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// FindCategoryByName resolves a user's category by exact name.
func (s *Store) FindCategoryByName(ctx context.Context, userID, name string) (*domain.Category, error) {
	var c domain.Category
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, name FROM categories WHERE user_id = ? AND name = ?", userID, name).
		Scan(&c.ID, &c.UserID, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan category: %w", err)
	}
	return &c, nil
}

// CreateTag inserts a tag.
func (s *Store) CreateTag(ctx context.Context, t *domain.Tag) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO tags (id, user_id, name) VALUES (?, ?, ?)", t.ID, t.UserID, t.Name)
	if err != nil {
		return fmt.Errorf("insert tag %s: %w", t.Name, err)
	}
	return nil
}
