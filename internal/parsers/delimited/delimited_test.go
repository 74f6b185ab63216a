package delimited

import (
	"context"
	"errors"
	"testing"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

func TestName(t *testing.T) {
	if got := NewParser().Name(); got != "delimited" {
		t.Errorf("Name() = %q, want %q", got, "delimited")
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   bool
	}{
		{"comma header", "Date,Description,Amount\n01/15/2024,Coffee,-4.50", true},
		{"semicolon header", "Date;Description;Amount", true},
		{"tab header", "Date\tDescription\tAmount", true},
		{"pipe header", "Date|Description|Amount", true},
		{"no delimiter", "just a sentence without structure", false},
		{"binary", "PK\x00\x03,\x00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewParser().Sniff([]byte(tt.header)); got != tt.want {
				t.Errorf("Sniff(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestParse_SingleAmountColumn(t *testing.T) {
	input := `Date,Description,Amount
01/15/2024,Coffee Shop,-4.50
01/16/2024,Paycheck,2000.00
`
	rows, mapping, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if mapping.SplitInput {
		t.Error("SplitInput = true, want false")
	}
	if col := mapping.Columns[parser.FieldAmount]; col != "Amount" {
		t.Errorf("amount column = %q, want %q", col, "Amount")
	}

	if rows[0].Description != "Coffee Shop" {
		t.Errorf("rows[0].Description = %q", rows[0].Description)
	}
	if !rows[0].HasAmount || rows[0].Amount.String() != "-4.5" {
		t.Errorf("rows[0].Amount = %s (has=%v), want -4.5", rows[0].Amount, rows[0].HasAmount)
	}
	if rows[0].Line != 2 {
		t.Errorf("rows[0].Line = %d, want 2", rows[0].Line)
	}
	if rows[1].Amount.String() != "2000" {
		t.Errorf("rows[1].Amount = %s, want 2000", rows[1].Amount)
	}
}

func TestParse_SplitCreditDebitColumns(t *testing.T) {
	input := `Posted Date;Details;Paid In;Paid Out
2024-01-15;Coffee;;4.50
2024-01-16;Refund;12.00;
`
	rows, mapping, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !mapping.SplitInput {
		t.Fatal("SplitInput = false, want true")
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if !rows[0].HasDebit || rows[0].Debit.String() != "4.5" {
		t.Errorf("rows[0].Debit = %s (has=%v), want 4.5", rows[0].Debit, rows[0].HasDebit)
	}
	if rows[0].HasCredit {
		t.Error("rows[0].HasCredit = true for empty credit cell")
	}
	if !rows[1].HasCredit || rows[1].Credit.String() != "12" {
		t.Errorf("rows[1].Credit = %s (has=%v), want 12", rows[1].Credit, rows[1].HasCredit)
	}
}

// When both a unified amount column and split columns exist, the unified
// column wins and the split columns are ignored.
func TestParse_AmountColumnWinsOverSplit(t *testing.T) {
	input := `Date,Description,Amount,Credit,Debit
01/15/2024,Coffee,-4.50,,4.50
`
	rows, mapping, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if mapping.SplitInput {
		t.Error("SplitInput = true, want false")
	}
	if mapping.Has(parser.FieldCredit) || mapping.Has(parser.FieldDebit) {
		t.Error("credit/debit still mapped alongside amount")
	}
	if rows[0].HasCredit || rows[0].HasDebit {
		t.Error("split values extracted despite unified amount column")
	}
}

func TestParse_CategoryAndPayeeColumns(t *testing.T) {
	input := `Date,Payee,Description,Amount,Category
01/15/2024,Blue Bottle,Coffee Shop,-4.50,Dining
`
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if rows[0].Payee != "Blue Bottle" {
		t.Errorf("Payee = %q", rows[0].Payee)
	}
	if rows[0].CategoryHint != "Dining" {
		t.Errorf("CategoryHint = %q", rows[0].CategoryHint)
	}
}

// The "name" payee keyword must not steal a "Description" column.
func TestInferMapping_DescriptionBeforePayee(t *testing.T) {
	mapping, index := inferMapping([]string{"Date", "Name", "Description", "Amount"})
	if got := mapping.Columns[parser.FieldDescription]; got != "Description" {
		t.Errorf("description column = %q, want Description", got)
	}
	if got := mapping.Columns[parser.FieldPayee]; got != "Name" {
		t.Errorf("payee column = %q, want Name", got)
	}
	if index[parser.FieldDescription] == index[parser.FieldPayee] {
		t.Error("description and payee claimed the same column")
	}
}

func TestParse_UnmappableHeader(t *testing.T) {
	input := `alpha,beta,gamma
1,2,3
`
	_, _, err := NewParser().Parse(context.Background(), []byte(input))
	if !errors.Is(err, domain.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestParse_HeaderOnly(t *testing.T) {
	_, _, err := NewParser().Parse(context.Background(), []byte("Date,Description,Amount\n"))
	if !errors.Is(err, domain.ErrNoRows) {
		t.Errorf("err = %v, want ErrNoRows", err)
	}
}

func TestParse_UnparsableFieldsLeftZero(t *testing.T) {
	input := `Date,Description,Amount
not-a-date,Mystery,garbage
`
	rows, _, err := NewParser().Parse(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !rows[0].Date.IsZero() {
		t.Errorf("Date = %v, want zero", rows[0].Date)
	}
	if rows[0].RawDate != "not-a-date" {
		t.Errorf("RawDate = %q", rows[0].RawDate)
	}
	if rows[0].HasAmount {
		t.Error("HasAmount = true for unparsable amount")
	}
}
