// Package builder turns normalized rows into candidate ledger entries,
// deciding skip-versus-keep and the income/expense direction.
package builder

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

// Skip reasons reported in batch results.
const (
	SkipNoDate     = "missing or unparsable date"
	SkipNoDesc     = "missing description"
	SkipZeroAmount = "zero or unparsable amount"
)

// Build converts one row into a candidate entry. The second return is a
// skip reason; when non-empty the row is dropped without error, matching
// how real exports pad statements with separator and summary lines.
func Build(userID, accountID, currency string, row parser.NormalizedRow) (*domain.Entry, string) {
	if row.Date.IsZero() {
		return nil, SkipNoDate
	}
	description := strings.TrimSpace(row.Description)
	if description == "" {
		return nil, SkipNoDesc
	}

	amount, typ, ok := direction(row)
	if !ok {
		return nil, SkipZeroAmount
	}

	e, err := domain.NewEntry(userID, accountID, amount, typ, row.Date, description)
	if err != nil {
		return nil, err.Error()
	}
	e.Payee = NormalizePayee(row.Payee)
	e.Notes = strings.TrimSpace(row.Notes)
	e.Currency = currency
	e.NeedsReview = true
	return e, ""
}

// direction resolves the signed amount columns into a positive amount and
// an entry type. A single signed column maps negative to expense and
// positive to income. Split credit/debit columns are each treated as
// magnitudes, but a negative value in either means the bank flipped the
// direction (a refund in the debit column, a chargeback in the credit
// column).
func direction(row parser.NormalizedRow) (decimal.Decimal, domain.EntryType, bool) {
	// An explicit entry-type hint wins over the sign, so exported rows
	// come back with their original type. Bank-format hints (DEBIT,
	// CREDIT, POS, ...) are ignored; there the sign is authoritative.
	if typ, ok := hintedType(row.TypeHint); ok {
		amt := magnitude(row)
		if amt.IsZero() {
			return decimal.Zero, "", false
		}
		return amt, typ, true
	}

	if row.HasAmount {
		if row.Amount.IsZero() {
			return decimal.Zero, "", false
		}
		if row.Amount.IsNegative() {
			return row.Amount.Abs(), domain.EntryExpense, true
		}
		return row.Amount, domain.EntryIncome, true
	}

	if row.HasCredit && !row.Credit.IsZero() {
		if row.Credit.IsNegative() {
			return row.Credit.Abs(), domain.EntryExpense, true
		}
		return row.Credit, domain.EntryIncome, true
	}
	if row.HasDebit && !row.Debit.IsZero() {
		if row.Debit.IsNegative() {
			return row.Debit.Abs(), domain.EntryIncome, true
		}
		return row.Debit, domain.EntryExpense, true
	}
	return decimal.Zero, "", false
}

func hintedType(hint string) (domain.EntryType, bool) {
	typ := domain.EntryType(strings.ToLower(strings.TrimSpace(hint)))
	switch typ {
	case domain.EntryIncome, domain.EntryExpense, domain.EntryTransfer:
		return typ, true
	}
	return "", false
}

// magnitude is the unsigned amount of whichever column the row carries.
func magnitude(row parser.NormalizedRow) decimal.Decimal {
	switch {
	case row.HasAmount:
		return row.Amount.Abs()
	case row.HasCredit && !row.Credit.IsZero():
		return row.Credit.Abs()
	case row.HasDebit:
		return row.Debit.Abs()
	}
	return decimal.Zero
}
