// Package suggest proposes categories for uncategorized entries from the
// user's own history. It runs after the rule engine and never overrides an
// explicit rule match.
package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/finledger/finledger/internal/domain"
)

// Confidence weights. Payee history is near-deterministic for most users,
// keyword matches are noisier.
const (
	payeeWeight   = 0.9
	payeeFloor    = 0.1
	keywordWeight = 0.7

	// Threshold below which a suggestion is discarded rather than shown.
	Threshold = 0.3

	maxKeywords   = 5
	minKeywordLen = 3
)

// History is the slice of the store the suggester reads.
type History interface {
	CategorizedByPayee(ctx context.Context, userID, payee, excludeID string) ([]string, error)
	CategorizedByKeyword(ctx context.Context, userID, keyword, excludeID string) ([]string, error)
}

// Suggestion is a proposed category with a confidence in [0, 1].
type Suggestion struct {
	CategoryID string
	Confidence float64
	Source     string // "payee" or "keyword"
}

// Suggester derives category suggestions from prior categorized entries.
type Suggester struct {
	history History
}

func New(history History) *Suggester {
	return &Suggester{history: history}
}

// Suggest returns the best category suggestion for the entry, or nil when
// no strategy clears the confidence threshold. Entries that already carry
// a category are left alone.
func (s *Suggester) Suggest(ctx context.Context, e *domain.Entry) (*Suggestion, error) {
	if e.CategoryID != "" {
		return nil, nil
	}

	if e.Payee != "" {
		sug, err := s.byPayee(ctx, e)
		if err != nil {
			return nil, err
		}
		if sug != nil && sug.Confidence >= Threshold {
			return sug, nil
		}
	}

	sug, err := s.byKeywords(ctx, e)
	if err != nil {
		return nil, err
	}
	if sug != nil && sug.Confidence >= Threshold {
		return sug, nil
	}
	return nil, nil
}

func (s *Suggester) byPayee(ctx context.Context, e *domain.Entry) (*Suggestion, error) {
	cats, err := s.history.CategorizedByPayee(ctx, e.UserID, e.Payee, e.ID)
	if err != nil {
		return nil, fmt.Errorf("payee suggestion: %w", err)
	}
	best, share := dominant(cats)
	if best == "" {
		return nil, nil
	}
	conf := share*payeeWeight + payeeFloor
	if conf > 1.0 {
		conf = 1.0
	}
	return &Suggestion{CategoryID: best, Confidence: conf, Source: "payee"}, nil
}

func (s *Suggester) byKeywords(ctx context.Context, e *domain.Entry) (*Suggestion, error) {
	keywords := Keywords(e.Description)
	if len(keywords) == 0 {
		return nil, nil
	}
	var all []string
	for _, kw := range keywords {
		cats, err := s.history.CategorizedByKeyword(ctx, e.UserID, kw, e.ID)
		if err != nil {
			return nil, fmt.Errorf("keyword suggestion: %w", err)
		}
		all = append(all, cats...)
	}
	best, share := dominant(all)
	if best == "" {
		return nil, nil
	}
	return &Suggestion{CategoryID: best, Confidence: share * keywordWeight, Source: "keyword"}, nil
}

// dominant returns the most frequent category and its share of the total.
// Ties resolve to the lexically smallest ID for determinism.
func dominant(cats []string) (string, float64) {
	if len(cats) == 0 {
		return "", 0
	}
	counts := make(map[string]int, len(cats))
	for _, c := range cats {
		counts[c]++
	}
	var best string
	bestN := 0
	for c, n := range counts {
		if n > bestN || (n == bestN && c < best) {
			best, bestN = c, n
		}
	}
	return best, float64(bestN) / float64(len(cats))
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true,
	"inc": true, "llc": true, "ltd": true, "corp": true, "com": true,
	"pos": true, "debit": true, "credit": true, "card": true, "purchase": true,
	"payment": true, "online": true, "transaction": true, "www": true,
}

// Keywords extracts up to five search terms from a description: lowercase
// alphanumeric runs of three or more characters with boilerplate banking
// vocabulary removed.
func Keywords(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	var out []string
	seen := make(map[string]bool)
	for _, f := range fields {
		if len(f) < minKeywordLen || stopWords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxKeywords {
			break
		}
	}
	return out
}
