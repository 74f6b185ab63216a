// Package parser defines the format-agnostic row model and the strategy
// interface every format parser implements.
package parser

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Field names a canonical semantic column.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldPayee       Field = "payee"
	FieldAmount      Field = "amount"
	FieldCredit      Field = "credit"
	FieldDebit       Field = "debit"
	FieldCategory    Field = "category"
	FieldNotes       Field = "notes"
	FieldType        Field = "type"
)

// NormalizedRow is the format-agnostic representation of one input record.
// All parsers produce sequences of this type; the transaction builder turns
// it into a candidate ledger entry.
type NormalizedRow struct {
	Line        int       // 1-based source row number
	Date        time.Time // zero when unparsable
	RawDate     string
	Description string
	Payee       string

	// Amount is the unified signed amount when the source has one column.
	// Credit/Debit carry split-column values; HasAmount and HasCredit /
	// HasDebit record which were present, since zero is a legal value.
	Amount    decimal.Decimal
	HasAmount bool
	Credit    decimal.Decimal
	HasCredit bool
	Debit     decimal.Decimal
	HasDebit  bool

	TypeHint     string // source transaction type, e.g. "DEBIT"
	CategoryHint string
	Notes        string
}

// FieldMapping associates canonical fields with the source columns they were
// inferred from. Preview surfaces it so the caller can override.
type FieldMapping struct {
	Columns    map[Field]string `json:"columns" yaml:"columns"`
	SplitInput bool             `json:"split_input" yaml:"split_input"` // separate credit/debit columns in use
}

// NewFieldMapping creates an empty mapping.
func NewFieldMapping() FieldMapping {
	return FieldMapping{Columns: make(map[Field]string)}
}

// Has reports whether a canonical field was mapped.
func (m FieldMapping) Has(f Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// Parser is the strategy interface for all format parsers.
type Parser interface {
	// Name returns the parser identifier (e.g. "delimited", "bank-export").
	Name() string

	// Sniff checks whether this parser should handle content with the
	// given leading bytes.
	Sniff(header []byte) bool

	// Parse turns raw source bytes into normalized rows plus the inferred
	// field mapping. Implementations must return an error wrapping
	// domain.ErrNoRows when zero usable rows result.
	Parse(ctx context.Context, raw []byte) ([]NormalizedRow, FieldMapping, error)
}
