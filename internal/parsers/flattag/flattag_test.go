package flattag

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finledger/finledger/internal/domain"
)

func TestName(t *testing.T) {
	if got := NewParser().Name(); got != "flat-tag" {
		t.Errorf("Name() = %q, want %q", got, "flat-tag")
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"type header", "!Type:Bank\nD01/15/2024\nT-4.50\n^\n", true},
		{"account header", "!Account\nNChecking\n^\n", true},
		{"headerless with separator", "D01/15/2024\nT-4.50\n^\n", true},
		{"csv content", "Date,Description,Amount\n", false},
		{"plain text", "hello world", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewParser().Sniff([]byte(tt.header)); got != tt.want {
				t.Errorf("Sniff(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestParse_Records(t *testing.T) {
	input := `!Type:Bank
D01/15/2024
T-4.50
PBlue Bottle
MCoffee before work
LDining:Coffee
^
D01/16/2024
T2000.00
PAcme Corp
LSalary
^
`
	rows, mapping, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	r := rows[0]
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !r.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", r.Date, want)
	}
	if !r.HasAmount || r.Amount.String() != "-4.5" {
		t.Errorf("Amount = %s (has=%v), want -4.5", r.Amount, r.HasAmount)
	}
	if r.Payee != "Blue Bottle" {
		t.Errorf("Payee = %q", r.Payee)
	}
	if r.Notes != "Coffee before work" {
		t.Errorf("Notes = %q", r.Notes)
	}
	// Hierarchical category keeps only the first segment.
	if r.CategoryHint != "Dining" {
		t.Errorf("CategoryHint = %q, want Dining", r.CategoryHint)
	}
	// Payee doubles as the description when no memo came first.
	if r.Description != "Blue Bottle" {
		t.Errorf("Description = %q, want Blue Bottle", r.Description)
	}

	if rows[1].CategoryHint != "Salary" {
		t.Errorf("rows[1].CategoryHint = %q", rows[1].CategoryHint)
	}
	if got := mapping.Columns["date"]; got != "D" {
		t.Errorf("date mapping = %q, want D", got)
	}
}

// A file missing its final ^ must still yield the last record.
func TestParse_MissingFinalSeparator(t *testing.T) {
	input := "!Type:Bank\nD01/15/2024\nT-4.50\nPCoffee\n"
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Payee != "Coffee" {
		t.Errorf("Payee = %q", rows[0].Payee)
	}
}

func TestParse_UAmountTag(t *testing.T) {
	input := "D01/15/2024\nU-10.00\nPVendor\n^\n"
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].Amount.String() != "-10" {
		t.Errorf("Amount = %s, want -10", rows[0].Amount)
	}
}

func TestParse_UnknownTagsIgnored(t *testing.T) {
	input := "D01/15/2024\nT-4.50\nPCoffee\nZsomething weird\n^\n"
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
}

func TestParse_Empty(t *testing.T) {
	_, _, err := NewParser().Parse(context.Background(), []byte("!Type:Bank\n"))
	if !errors.Is(err, domain.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestNormalizeQIFDate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1/15'24", "1/15/24"},
		{"1/ 2'06", "1/2/06"},
		{"01/15/2024", "01/15/2024"},
	}
	for _, tt := range tests {
		if got := normalizeQIFDate(tt.in); got != tt.want {
			t.Errorf("normalizeQIFDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
