package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/rules"
)

// SaveRule inserts or replaces a categorization rule. Actions are stored as
// a JSON column since they are only ever read back as a unit.
func (s *Store) SaveRule(ctx context.Context, r *rules.Rule) error {
	actions, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("encode rule actions: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO rules (id, user_id, name, field, match_type, pattern,
			category_id, priority, enabled, actions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.Name, string(r.Field), string(r.MatchType), r.Pattern,
		nullable(r.CategoryID), r.Priority, boolInt(r.Enabled), string(actions))
	if err != nil {
		return fmt.Errorf("save rule %s: %w", r.ID, err)
	}
	return nil
}

// ListRules returns a user's rules ordered by priority descending, the
// order the engine evaluates them in.
func (s *Store) ListRules(ctx context.Context, userID string) ([]*rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, field, match_type, pattern,
			COALESCE(category_id, ''), priority, enabled, actions
		FROM rules WHERE user_id = ? ORDER BY priority DESC, id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []*rules.Rule
	for rows.Next() {
		var (
			r                        rules.Rule
			field, matchType, actRaw string
			enabled                  int
		)
		err := rows.Scan(&r.ID, &r.UserID, &r.Name, &field, &matchType, &r.Pattern,
			&r.CategoryID, &r.Priority, &enabled, &actRaw)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.Field = rules.Field(field)
		r.MatchType = rules.MatchType(matchType)
		r.Enabled = enabled == 1
		if actRaw != "" && actRaw != "null" {
			if err := json.Unmarshal([]byte(actRaw), &r.Actions); err != nil {
				return nil, fmt.Errorf("decode actions for rule %s: %w", r.ID, err)
			}
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// DeleteRule removes a rule by ID.
func (s *Store) DeleteRule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
