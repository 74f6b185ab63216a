package statement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finledger/finledger/internal/domain"
)

func TestName(t *testing.T) {
	if got := NewParser().Name(); got != "statement-text" {
		t.Errorf("Name() = %q, want %q", got, "statement-text")
	}
}

func TestSniff(t *testing.T) {
	if !NewParser().Sniff([]byte("%PDF-1.7\n")) {
		t.Error("Sniff should accept PDF magic")
	}
	// Plain text is never sniffed; it must be selected explicitly.
	if NewParser().Sniff([]byte("01/15/2024 Coffee Shop 4.50")) {
		t.Error("Sniff should reject plain text")
	}
}

func TestParse_StatementText(t *testing.T) {
	input := `ACME BANK            Statement Period 01/01/2024 - 01/31/2024

Date        Description                     Amount      Balance
01/15/2024  COFFEE SHOP #42 PORTLAND OR     (4.50)      1,995.50
01/16/2024  DIRECT DEPOSIT ACME CORP        2,000.00    3,995.50

Page 1 of 2
Questions? Call 1-800-555-0100
`
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	// The header period line has dates but no decimal amount; the footer
	// lines have neither. Only the two transaction lines survive.
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2: %+v", len(rows), rows)
	}

	r := rows[0]
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !r.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", r.Date, want)
	}
	// The last amount (the running balance column) is consumed as the
	// amount; the transaction amount stays in the description text.
	if r.Amount.String() != "1995.5" {
		t.Errorf("Amount = %s, want 1995.5", r.Amount)
	}
	if r.Description != "COFFEE SHOP #42 PORTLAND OR (4.50)" {
		t.Errorf("Description = %q", r.Description)
	}
}

// The last amount on a line wins, so the trailing running balance is the
// scanned amount when both are present.
func TestScanLine_LastAmountWins(t *testing.T) {
	row, ok := scanLine("01/15/2024 COFFEE SHOP 4.50 1995.50", 1)
	if !ok {
		t.Fatal("scanLine rejected a valid line")
	}
	if row.Amount.String() != "1995.5" {
		t.Errorf("Amount = %s, want 1995.5 (last match)", row.Amount)
	}
	if row.Description != "COFFEE SHOP 4.50" {
		t.Errorf("Description = %q", row.Description)
	}
}

func TestScanLine_Rejections(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"no date", "COFFEE SHOP 4.50"},
		{"no amount", "01/15/2024 COFFEE SHOP"},
		{"integer only", "01/15/2024 REF 123456"},
		{"date and amount but no text", "01/15/2024 4.50"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := scanLine(tt.line, 1); ok {
				t.Errorf("scanLine(%q) accepted, want reject", tt.line)
			}
		})
	}
}

func TestScanLine_ParenthesizedNegative(t *testing.T) {
	row, ok := scanLine("01/15/2024 COFFEE SHOP (4.50)", 1)
	if !ok {
		t.Fatal("scanLine rejected a valid line")
	}
	if row.Amount.String() != "-4.5" {
		t.Errorf("Amount = %s, want -4.5", row.Amount)
	}
}

func TestScanLine_MonthNameDate(t *testing.T) {
	row, ok := scanLine("Jan 15, 2024 GROCERY STORE 52.30", 1)
	if !ok {
		t.Fatal("scanLine rejected a valid line")
	}
	if want := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC); !row.Date.Equal(want) {
		t.Errorf("Date = %v, want %v", row.Date, want)
	}
}

func TestParse_NoUsableLines(t *testing.T) {
	_, _, err := NewParser().Parse(context.Background(), []byte("nothing financial here\njust words\n"))
	if !errors.Is(err, domain.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}
