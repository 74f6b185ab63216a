package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/finledger/internal/domain"
)

// fakeHistory serves canned category lists keyed by payee and keyword.
type fakeHistory struct {
	byPayee   map[string][]string
	byKeyword map[string][]string
}

func (f *fakeHistory) CategorizedByPayee(_ context.Context, _, payee, _ string) ([]string, error) {
	return f.byPayee[payee], nil
}

func (f *fakeHistory) CategorizedByKeyword(_ context.Context, _, keyword, _ string) ([]string, error) {
	return f.byKeyword[keyword], nil
}

func TestSuggest_PayeeUnanimous(t *testing.T) {
	s := New(&fakeHistory{byPayee: map[string][]string{
		"Blue Bottle": {"cat-dining", "cat-dining", "cat-dining"},
	}})
	sug, err := s.Suggest(context.Background(), &domain.Entry{Payee: "Blue Bottle"})
	require.NoError(t, err)
	require.NotNil(t, sug)
	assert.Equal(t, "cat-dining", sug.CategoryID)
	// Unanimous history: share 1.0 scales to 0.9 + 0.1 floor, capped at 1.0.
	assert.InDelta(t, 1.0, sug.Confidence, 1e-9)
	assert.Equal(t, "payee", sug.Source)
}

func TestSuggest_PayeeMajority(t *testing.T) {
	s := New(&fakeHistory{byPayee: map[string][]string{
		"Corner Store": {"cat-grocery", "cat-grocery", "cat-grocery", "cat-household"},
	}})
	sug, err := s.Suggest(context.Background(), &domain.Entry{Payee: "Corner Store"})
	require.NoError(t, err)
	require.NotNil(t, sug)
	assert.Equal(t, "cat-grocery", sug.CategoryID)
	assert.InDelta(t, 0.75*0.9+0.1, sug.Confidence, 1e-9)
}

func TestSuggest_KeywordFallback(t *testing.T) {
	s := New(&fakeHistory{
		byPayee: map[string][]string{},
		byKeyword: map[string][]string{
			"pharmacy": {"cat-health", "cat-health"},
		},
	})
	sug, err := s.Suggest(context.Background(), &domain.Entry{
		Payee:       "Unknown Vendor",
		Description: "CITY PHARMACY 0042",
	})
	require.NoError(t, err)
	require.NotNil(t, sug)
	assert.Equal(t, "cat-health", sug.CategoryID)
	assert.InDelta(t, 0.7, sug.Confidence, 1e-9)
	assert.Equal(t, "keyword", sug.Source)
}

func TestSuggest_BelowThreshold(t *testing.T) {
	// Four-way split: share 0.25, keyword confidence 0.175, below 0.3.
	s := New(&fakeHistory{byKeyword: map[string][]string{
		"market": {"cat-a", "cat-b", "cat-c", "cat-d"},
	}})
	sug, err := s.Suggest(context.Background(), &domain.Entry{Description: "market"})
	require.NoError(t, err)
	assert.Nil(t, sug)
}

func TestSuggest_AlreadyCategorized(t *testing.T) {
	s := New(&fakeHistory{byPayee: map[string][]string{
		"Blue Bottle": {"cat-dining"},
	}})
	sug, err := s.Suggest(context.Background(), &domain.Entry{
		Payee:      "Blue Bottle",
		CategoryID: "cat-existing",
	})
	require.NoError(t, err)
	assert.Nil(t, sug)
}

func TestSuggest_NoHistory(t *testing.T) {
	s := New(&fakeHistory{})
	sug, err := s.Suggest(context.Background(), &domain.Entry{
		Payee:       "Never Seen",
		Description: "first purchase here",
	})
	require.NoError(t, err)
	assert.Nil(t, sug)
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "strips boilerplate and short tokens",
			input: "POS DEBIT CARD PURCHASE BLUE BOTTLE 42 PORTLAND",
			want:  []string{"blue", "bottle", "portland"},
		},
		{
			name:  "caps at five",
			input: "alpha bravo charlie delta echo foxtrot golf",
			want:  []string{"alpha", "bravo", "charlie", "delta", "echo"},
		},
		{
			name:  "dedupes repeats",
			input: "uber uber trip trip",
			want:  []string{"uber", "trip"},
		},
		{
			name:  "splits on punctuation",
			input: "NETFLIX.COM/BILL",
			want:  []string{"netflix", "bill"},
		},
		{
			name:  "nothing usable",
			input: "a of 12",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.input))
		})
	}
}
