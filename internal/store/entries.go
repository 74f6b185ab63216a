package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
)

const dateLayout = "2006-01-02"

const entryColumns = `id, user_id, account_id, COALESCE(dest_account_id, ''), amount, type, date,
	description, payee, notes, status, COALESCE(category_id, ''), currency,
	flagged, needs_review, excluded, reversed`

// InsertEntry persists a new entry with its tags and splits. Runs on a DBTX
// so the balance engine can include it in its unit of work.
func (s *Store) InsertEntry(ctx context.Context, q DBTX, e *domain.Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO entries (id, user_id, account_id, dest_account_id, amount, type, date,
			description, payee, notes, status, category_id, currency,
			flagged, needs_review, excluded, reversed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.AccountID, nullable(e.DestAccountID), e.Amount.String(), string(e.Type),
		e.Date.Format(dateLayout), e.Description, e.Payee, e.Notes, string(e.Status),
		nullable(e.CategoryID), e.Currency,
		boolInt(e.Flagged), boolInt(e.NeedsReview), boolInt(e.Excluded), boolInt(e.Reversed))
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return s.writeEntryRelations(ctx, q, e)
}

// UpdateEntry rewrites an entry's attributes, tags, and splits.
func (s *Store) UpdateEntry(ctx context.Context, q DBTX, e *domain.Entry) error {
	res, err := q.ExecContext(ctx, `
		UPDATE entries SET account_id = ?, dest_account_id = ?, amount = ?, type = ?, date = ?,
			description = ?, payee = ?, notes = ?, status = ?, category_id = ?, currency = ?,
			flagged = ?, needs_review = ?, excluded = ?, reversed = ?
		WHERE id = ?
	`, e.AccountID, nullable(e.DestAccountID), e.Amount.String(), string(e.Type),
		e.Date.Format(dateLayout), e.Description, e.Payee, e.Notes, string(e.Status),
		nullable(e.CategoryID), e.Currency,
		boolInt(e.Flagged), boolInt(e.NeedsReview), boolInt(e.Excluded), boolInt(e.Reversed),
		e.ID)
	if err != nil {
		return fmt.Errorf("update entry %s: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", e.ID, domain.ErrNotFound)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM entry_tags WHERE entry_id = ?", e.ID); err != nil {
		return fmt.Errorf("clear entry tags: %w", err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM entry_splits WHERE entry_id = ?", e.ID); err != nil {
		return fmt.Errorf("clear entry splits: %w", err)
	}
	return s.writeEntryRelations(ctx, q, e)
}

func (s *Store) writeEntryRelations(ctx context.Context, q DBTX, e *domain.Entry) error {
	for _, tagID := range e.TagIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)", e.ID, tagID); err != nil {
			return fmt.Errorf("insert entry tag: %w", err)
		}
	}
	for i, sp := range e.Splits {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO entry_splits (entry_id, seq, category_id, amount, note)
			VALUES (?, ?, ?, ?, ?)
		`, e.ID, i, sp.CategoryID, sp.Amount.String(), sp.Note); err != nil {
			return fmt.Errorf("insert entry split: %w", err)
		}
	}
	return nil
}

// DeleteEntry removes an entry; tags and splits cascade.
func (s *Store) DeleteEntry(ctx context.Context, q DBTX, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// GetEntry fetches one entry with its tags and splits.
func (s *Store) GetEntry(ctx context.Context, q DBTX, id string) (*domain.Entry, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+entryColumns+" FROM entries WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("query entry %s: %w", id, err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	e := entries[0]
	if err := s.loadRelations(ctx, q, e); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntries returns all of a user's entries ordered by date ascending.
// Relations are loaded per entry; callers on hot paths should filter first.
func (s *Store) ListEntries(ctx context.Context, q DBTX, userID string) ([]*domain.Entry, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+entryColumns+" FROM entries WHERE user_id = ? ORDER BY date ASC, id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := s.loadRelations(ctx, q, e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// FindDuplicate reports whether another entry exists for the account with
// identical amount and description dated within one calendar day either
// side. Guards re-import safety for machine-generated formats.
// DuplicateWindowDays is how many calendar days either side of an
// incoming date an existing entry may sit and still count as the same
// transaction. Banks shift posting dates by a day across export formats.
const DuplicateWindowDays = 1

func (s *Store) FindDuplicate(ctx context.Context, q DBTX, accountID string, amount decimal.Decimal, description string, date time.Time) (bool, error) {
	lo := date.AddDate(0, 0, -DuplicateWindowDays).Format(dateLayout)
	hi := date.AddDate(0, 0, DuplicateWindowDays).Format(dateLayout)
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM entries
		WHERE account_id = ? AND amount = ? AND description = ? AND date BETWEEN ? AND ?
	`, accountID, amount.String(), description, lo, hi).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("duplicate check: %w", err)
	}
	return n > 0, nil
}

// CategorizedByPayee returns the category IDs of prior categorized entries
// with an exact payee match, excluding the given entry.
func (s *Store) CategorizedByPayee(ctx context.Context, userID, payee, excludeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM entries
		WHERE user_id = ? AND payee = ? AND id != ? AND category_id IS NOT NULL AND reversed = 0
	`, userID, payee, excludeID)
	if err != nil {
		return nil, fmt.Errorf("payee history: %w", err)
	}
	return collectStrings(rows)
}

// CategorizedByKeyword returns the category IDs of prior categorized entries
// whose description contains the keyword (case-insensitive), excluding the
// given entry.
func (s *Store) CategorizedByKeyword(ctx context.Context, userID, keyword, excludeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category_id FROM entries
		WHERE user_id = ? AND id != ? AND category_id IS NOT NULL AND reversed = 0
		  AND instr(lower(description), lower(?)) > 0
	`, userID, excludeID, keyword)
	if err != nil {
		return nil, fmt.Errorf("keyword history: %w", err)
	}
	return collectStrings(rows)
}

// RecurrencePool returns non-reversed income/expense entries with a
// non-empty payee, the recurrence detector's input set.
func (s *Store) RecurrencePool(ctx context.Context, userID string) ([]*domain.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM entries
		WHERE user_id = ? AND payee != '' AND reversed = 0 AND type IN ('income', 'expense')
		ORDER BY date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("recurrence pool: %w", err)
	}
	return collectEntries(rows)
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func collectEntries(rows *sql.Rows) ([]*domain.Entry, error) {
	defer rows.Close()
	var out []*domain.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (*domain.Entry, error) {
	var (
		e                                   domain.Entry
		amount, typ, date, status           string
		flagged, needsReview, excluded, rev int
	)
	err := rows.Scan(&e.ID, &e.UserID, &e.AccountID, &e.DestAccountID, &amount, &typ, &date,
		&e.Description, &e.Payee, &e.Notes, &status, &e.CategoryID, &e.Currency,
		&flagged, &needsReview, &excluded, &rev)
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	if e.Date, err = time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("corrupt date %q: %w", date, err)
	}
	e.Type = domain.EntryType(typ)
	e.Status = domain.ClearingStatus(status)
	e.Flagged = flagged == 1
	e.NeedsReview = needsReview == 1
	e.Excluded = excluded == 1
	e.Reversed = rev == 1
	return &e, nil
}

func (s *Store) loadRelations(ctx context.Context, q DBTX, e *domain.Entry) error {
	tagRows, err := q.QueryContext(ctx,
		"SELECT tag_id FROM entry_tags WHERE entry_id = ? ORDER BY tag_id", e.ID)
	if err != nil {
		return fmt.Errorf("load entry tags: %w", err)
	}
	if e.TagIDs, err = collectStrings(tagRows); err != nil {
		return err
	}

	splitRows, err := q.QueryContext(ctx,
		"SELECT category_id, amount, note FROM entry_splits WHERE entry_id = ? ORDER BY seq", e.ID)
	if err != nil {
		return fmt.Errorf("load entry splits: %w", err)
	}
	defer splitRows.Close()
	for splitRows.Next() {
		var (
			sp  domain.Split
			amt string
		)
		if err := splitRows.Scan(&sp.CategoryID, &amt, &sp.Note); err != nil {
			return fmt.Errorf("scan split: %w", err)
		}
		if sp.Amount, err = decimal.NewFromString(amt); err != nil {
			return fmt.Errorf("corrupt split amount %q: %w", amt, err)
		}
		e.Splits = append(e.Splits, sp)
	}
	return splitRows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
