// Package rules implements priority-ordered, first-match-wins
// categorization rules applied to ledger entries at import time and on
// demand.
package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/finledger/finledger/internal/domain"
)

// Field names the entry attribute a rule matches against.
type Field string

const (
	FieldDescription Field = "description"
	FieldPayee       Field = "payee"
	FieldAmount      Field = "amount"
	FieldNotes       Field = "notes"
)

var validFields = map[Field]bool{
	FieldDescription: true, FieldPayee: true, FieldAmount: true, FieldNotes: true,
}

// MatchType selects the comparison applied to the field value.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchExact      MatchType = "exact"
	MatchRegex      MatchType = "regex"
)

// ActionKind names a mutation a matched rule performs on the entry.
type ActionKind string

const (
	ActionSetCategory  ActionKind = "set_category"
	ActionAddTag       ActionKind = "add_tag"
	ActionSetPayee     ActionKind = "set_payee"
	ActionSetNotes     ActionKind = "set_notes"
	ActionSetFlag      ActionKind = "set_flag"
	ActionMarkReviewed ActionKind = "mark_reviewed"
	ActionExclude      ActionKind = "exclude_from_reports"
)

// Action is one mutation carried by a rule. Value is the category ID, tag
// ID, payee, or notes text depending on Kind; kinds without a payload
// ignore it.
type Action struct {
	Kind  ActionKind `yaml:"kind" json:"kind"`
	Value string     `yaml:"value,omitempty" json:"value,omitempty"`
}

// Rule is one user-defined categorization rule.
type Rule struct {
	ID         string    `yaml:"id"`
	UserID     string    `yaml:"-"`
	Name       string    `yaml:"name"`
	Field      Field     `yaml:"field"`
	MatchType  MatchType `yaml:"match_type"`
	Pattern    string    `yaml:"pattern"`
	CategoryID string    `yaml:"category_id,omitempty"`
	Priority   int       `yaml:"priority"`
	Enabled    bool      `yaml:"enabled"`
	Actions    []Action  `yaml:"actions,omitempty"`
}

// Matches reports whether the rule's pattern matches the entry. All
// comparisons are case-insensitive. An invalid regex pattern is treated as
// a non-match rather than an error so one bad rule cannot wedge an import.
func (r *Rule) Matches(e *domain.Entry) bool {
	raw, ok := r.fieldValue(e)
	if !ok {
		return false
	}
	value := strings.ToLower(raw)
	pattern := strings.ToLower(r.Pattern)
	if pattern == "" {
		return false
	}
	switch r.MatchType {
	case MatchContains:
		return strings.Contains(value, pattern)
	case MatchStartsWith:
		return strings.HasPrefix(value, pattern)
	case MatchExact:
		return value == pattern
	case MatchRegex:
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(raw)
	default:
		return false
	}
}

// fieldValue returns the entry text a rule compares against. Amounts
// match on their two-decimal rendering, the same form exports use. An
// unknown field never matches.
func (r *Rule) fieldValue(e *domain.Entry) (string, bool) {
	switch r.Field {
	case FieldDescription:
		return e.Description, true
	case FieldPayee:
		return e.Payee, true
	case FieldAmount:
		return e.Amount.StringFixed(2), true
	case FieldNotes:
		return e.Notes, true
	}
	return "", false
}

// Apply performs the rule's actions on the entry. A rule with a CategoryID
// and no explicit actions sets the category; that is the common case for
// hand-written rule files.
func (r *Rule) Apply(e *domain.Entry) {
	actions := r.Actions
	if len(actions) == 0 && r.CategoryID != "" {
		actions = []Action{{Kind: ActionSetCategory, Value: r.CategoryID}}
	}
	for _, a := range actions {
		switch a.Kind {
		case ActionSetCategory:
			e.CategoryID = a.Value
			e.NeedsReview = false
		case ActionAddTag:
			if !e.HasTag(a.Value) {
				e.TagIDs = append(e.TagIDs, a.Value)
			}
		case ActionSetPayee:
			e.Payee = a.Value
		case ActionSetNotes:
			e.Notes = a.Value
		case ActionSetFlag:
			e.Flagged = true
		case ActionMarkReviewed:
			e.NeedsReview = false
		case ActionExclude:
			e.Excluded = true
		}
	}
}

// Engine evaluates a fixed rule set against entries.
type Engine struct {
	rules []*Rule
}

// NewEngine sorts the rules by priority descending (ties broken by ID for
// determinism) and returns an engine. The input slice is not modified.
func NewEngine(rs []*Rule) *Engine {
	sorted := make([]*Rule, len(rs))
	copy(sorted, rs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority > sorted[j].Priority
		}
		return sorted[i].ID < sorted[j].ID
	})
	return &Engine{rules: sorted}
}

// Apply evaluates rules in priority order and applies the first enabled
// match. Returns the matched rule, or nil if nothing matched.
func (eng *Engine) Apply(e *domain.Entry) *Rule {
	for _, r := range eng.rules {
		if !r.Enabled {
			continue
		}
		if r.Matches(e) {
			r.Apply(e)
			return r
		}
	}
	return nil
}

// Rules returns the engine's rules in evaluation order.
func (eng *Engine) Rules() []*Rule {
	return eng.rules
}
