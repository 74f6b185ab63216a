// Package delimited parses delimited-text exports (CSV and friends) with
// tolerant quoting and header-based field inference.
package delimited

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

// Parser is stateless; each call operates solely on the input bytes, so the
// shared instance is safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared delimited-text parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "delimited"
}

// Sniff accepts content whose first line splits into two or more fields on a
// known delimiter and contains no binary bytes.
func (p *Parser) Sniff(header []byte) bool {
	if bytes.ContainsRune(header, 0) {
		return false
	}
	line := header
	if i := bytes.IndexByte(header, '\n'); i >= 0 {
		line = header[:i]
	}
	for _, d := range []byte{',', ';', '\t', '|'} {
		if bytes.Count(line, []byte{d}) >= 1 {
			return true
		}
	}
	return false
}

// fieldKeywords maps each canonical field to the header keywords that select
// it. Headers are normalized to lowercase alphanumeric-with-underscore first;
// a keyword matches by exact match or substring, and the first match wins
// per field.
var fieldKeywords = map[parser.Field][]string{
	parser.FieldDate:        {"date", "posted", "transaction_date", "when"},
	parser.FieldDescription: {"description", "memo", "details", "narrative", "transaction"},
	parser.FieldPayee:       {"payee", "merchant", "name", "counterparty"},
	parser.FieldAmount:      {"amount", "value", "total"},
	parser.FieldCredit:      {"credit", "deposit", "paid_in", "inflow"},
	parser.FieldDebit:       {"debit", "withdrawal", "paid_out", "outflow"},
	parser.FieldCategory:    {"category", "class"},
	parser.FieldNotes:       {"notes", "note", "comment"},
	parser.FieldType:        {"type", "transaction_type"},
}

// fieldOrder fixes inference order so description keywords are claimed
// before payee's broader "name" keyword can shadow them.
var fieldOrder = []parser.Field{
	parser.FieldDate,
	parser.FieldDescription,
	parser.FieldPayee,
	parser.FieldAmount,
	parser.FieldCredit,
	parser.FieldDebit,
	parser.FieldCategory,
	parser.FieldNotes,
	parser.FieldType,
}

// Parse reads the delimited content, infers the field mapping from the
// header row, and produces one normalized row per data record.
func (p *Parser) Parse(ctx context.Context, raw []byte) ([]parser.NormalizedRow, parser.FieldMapping, error) {
	select {
	case <-ctx.Done():
		return nil, parser.FieldMapping{}, ctx.Err()
	default:
	}

	delim := sniffDelimiter(raw)
	r := csv.NewReader(bytes.NewReader(raw))
	r.Comma = delim
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, parser.FieldMapping{}, fmt.Errorf("failed to read delimited content: %w", err)
	}
	if len(records) < 2 {
		return nil, parser.FieldMapping{}, fmt.Errorf("delimited input has no data rows: %w", domain.ErrNoRows)
	}

	headers := records[0]
	mapping, index := inferMapping(headers)
	if !mapping.Has(parser.FieldDate) || (!mapping.Has(parser.FieldAmount) && !mapping.SplitInput) {
		return nil, mapping, fmt.Errorf("could not locate date and amount columns in header %v: %w", headers, domain.ErrNoRows)
	}

	rows := make([]parser.NormalizedRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, extractRow(rec, index, i+2))
	}
	if len(rows) == 0 {
		return nil, mapping, fmt.Errorf("delimited input has headers but no usable rows: %w", domain.ErrNoRows)
	}
	return rows, mapping, nil
}

// sniffDelimiter picks the delimiter with the most occurrences on the first
// line, defaulting to comma.
func sniffDelimiter(raw []byte) rune {
	line := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		line = raw[:i]
	}
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// normalizeHeader lowers a header to alphanumeric-with-underscore form:
// "Posted Date" → "posted_date".
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(strings.ToLower(h)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '-' || r == '.' || r == '/':
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

// inferMapping matches normalized headers against the canonical keyword
// lists. When both a unified amount column and separate credit/debit columns
// are present, amount wins and credit/debit are dropped.
func inferMapping(headers []string) (parser.FieldMapping, map[parser.Field]int) {
	mapping := parser.NewFieldMapping()
	index := make(map[parser.Field]int)

	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalizeHeader(h)
	}

	claimed := make(map[int]bool)
	for _, field := range fieldOrder {
		for _, kw := range fieldKeywords[field] {
			found := -1
			for i, h := range normalized {
				if claimed[i] || h == "" {
					continue
				}
				if h == kw || strings.Contains(h, kw) {
					found = i
					break
				}
			}
			if found >= 0 {
				mapping.Columns[field] = strings.TrimSpace(headers[found])
				index[field] = found
				claimed[found] = true
				break
			}
		}
	}

	if _, hasAmount := index[parser.FieldAmount]; hasAmount {
		delete(index, parser.FieldCredit)
		delete(index, parser.FieldDebit)
		delete(mapping.Columns, parser.FieldCredit)
		delete(mapping.Columns, parser.FieldDebit)
	} else if mapping.Has(parser.FieldCredit) || mapping.Has(parser.FieldDebit) {
		mapping.SplitInput = true
	}

	return mapping, index
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// extractRow pulls mapped values out of one record. Parse failures on a
// field leave it zero-valued; the transaction builder decides whether the
// row is usable.
func extractRow(rec []string, index map[parser.Field]int, line int) parser.NormalizedRow {
	get := func(f parser.Field) (string, bool) {
		i, ok := index[f]
		if !ok || i >= len(rec) {
			return "", false
		}
		return strings.TrimSpace(rec[i]), true
	}

	row := parser.NormalizedRow{Line: line}

	if s, ok := get(parser.FieldDate); ok {
		row.RawDate = s
		if d, err := parser.ParseDate(s); err == nil {
			row.Date = d
		}
	}
	if s, ok := get(parser.FieldDescription); ok {
		row.Description = s
	}
	if s, ok := get(parser.FieldPayee); ok {
		row.Payee = s
	}
	if s, ok := get(parser.FieldCategory); ok {
		row.CategoryHint = s
	}
	if s, ok := get(parser.FieldNotes); ok {
		row.Notes = s
	}
	if s, ok := get(parser.FieldType); ok {
		row.TypeHint = strings.ToUpper(s)
	}

	if s, ok := get(parser.FieldAmount); ok && s != "" {
		if d, err := parser.CleanAmount(s); err == nil {
			row.Amount = d
			row.HasAmount = true
		}
	}
	if s, ok := get(parser.FieldCredit); ok && s != "" {
		if d, err := parser.CleanAmount(s); err == nil {
			row.Credit = d
			row.HasCredit = true
		}
	}
	if s, ok := get(parser.FieldDebit); ok && s != "" {
		if d, err := parser.CleanAmount(s); err == nil {
			row.Debit = d
			row.HasDebit = true
		}
	}

	return row
}
