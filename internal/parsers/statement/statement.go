// Package statement parses transaction lines out of free text extracted
// from bank statement documents. The parser is probabilistic: lines without
// both a recognizable date and a recognizable amount are discarded, and it
// never fabricates a row it cannot support with both.
package statement

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

// Parser is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared statement-text parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "statement-text"
}

// Sniff accepts PDF documents; plain statement text is selected explicitly
// via the format discriminator rather than sniffed, since arbitrary text is
// indistinguishable from garbage.
func (p *Parser) Sniff(header []byte) bool {
	return bytes.HasPrefix(header, []byte("%PDF"))
}

// datePatterns are tried in order against each line; regional numeric forms
// first, then spelled-out month forms.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
	regexp.MustCompile(`\b\d{1,2}-\d{1,2}-\d{2,4}\b`),
	regexp.MustCompile(`\b(?i:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.? \d{1,2},? \d{4}\b`),
}

// amountPattern matches currency-symbol-tolerant amounts with a mandatory
// two-decimal fraction, optionally parenthesized as negative. Requiring the
// fraction keeps page numbers and reference codes from matching.
var amountPattern = regexp.MustCompile(`\(?-?[$€£]?\s?-?(?:\d{1,3}(?:,\d{3})+|\d+)\.\d{2}\)?`)

// Parse extracts text when given a PDF, then scans line by line for a date
// and an amount; the text between them, after stripping the matched
// substrings, becomes the description.
func (p *Parser) Parse(ctx context.Context, raw []byte) ([]parser.NormalizedRow, parser.FieldMapping, error) {
	select {
	case <-ctx.Done():
		return nil, parser.FieldMapping{}, ctx.Err()
	default:
	}

	text := string(raw)
	if bytes.HasPrefix(raw, []byte("%PDF")) {
		extracted, err := ExtractText(raw)
		if err != nil {
			return nil, parser.FieldMapping{}, fmt.Errorf("failed to extract text from PDF: %w", err)
		}
		text = extracted
	}

	var rows []parser.NormalizedRow
	for i, line := range strings.Split(text, "\n") {
		row, ok := scanLine(line, i+1)
		if ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return nil, parser.FieldMapping{}, fmt.Errorf("no statement lines with both a date and an amount: %w", domain.ErrNoRows)
	}

	mapping := parser.NewFieldMapping()
	mapping.Columns[parser.FieldDate] = "line-scan"
	mapping.Columns[parser.FieldAmount] = "line-scan"
	mapping.Columns[parser.FieldDescription] = "line-scan"
	return rows, mapping, nil
}

// scanLine extracts (date, amount, remaining-text) from one line. Returns
// false unless both a date and an amount are found.
func scanLine(line string, lineNo int) (parser.NormalizedRow, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return parser.NormalizedRow{}, false
	}

	var dateMatch string
	for _, re := range datePatterns {
		if m := re.FindString(line); m != "" {
			dateMatch = m
			break
		}
	}
	if dateMatch == "" {
		return parser.NormalizedRow{}, false
	}

	date, err := parser.ParseDate(dateMatch)
	if err != nil {
		return parser.NormalizedRow{}, false
	}

	// The amount is taken as the last match so trailing statement amounts
	// win over reference numbers embedded in the description.
	amountMatches := amountPattern.FindAllString(line, -1)
	if len(amountMatches) == 0 {
		return parser.NormalizedRow{}, false
	}
	amountMatch := amountMatches[len(amountMatches)-1]
	amount, err := parser.CleanAmount(amountMatch)
	if err != nil {
		return parser.NormalizedRow{}, false
	}

	desc := strings.Replace(line, dateMatch, "", 1)
	desc = strings.Replace(desc, amountMatch, "", 1)
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" {
		return parser.NormalizedRow{}, false
	}

	return parser.NormalizedRow{
		Line:        lineNo,
		Date:        date,
		RawDate:     dateMatch,
		Description: desc,
		Amount:      amount,
		HasAmount:   true,
	}, true
}
