// Package flattag parses QIF-style line-oriented exports where each line is
// a single-character field tag followed by its value.
package flattag

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

// Parser is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared flat-tag parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "flat-tag"
}

// Sniff accepts content starting with a !Type: header or a D date line
// followed by tag-per-line structure.
func (p *Parser) Sniff(header []byte) bool {
	trimmed := bytes.TrimLeft(header, " \t\r\n")
	if bytes.HasPrefix(trimmed, []byte("!Type:")) || bytes.HasPrefix(trimmed, []byte("!Account")) {
		return true
	}
	// Heuristic for headerless files: a D line and a ^ separator both present.
	return bytes.HasPrefix(trimmed, []byte("D")) && bytes.Contains(header, []byte("\n^"))
}

// accumulator buffers one record's tagged fields until an explicit flush.
type accumulator struct {
	row      parser.NormalizedRow
	nonEmpty bool
}

func (a *accumulator) reset(line int) {
	a.row = parser.NormalizedRow{Line: line}
	a.nonEmpty = false
}

// flush appends the buffered record if it accumulated anything, then resets.
func (a *accumulator) flush(rows []parser.NormalizedRow, nextLine int) []parser.NormalizedRow {
	if a.nonEmpty {
		rows = append(rows, a.row)
	}
	a.reset(nextLine)
	return rows
}

// Parse accumulates tag lines into records, flushing on the ^ separator and
// at end of input so a missing final terminator cannot drop the last record
// or loop indefinitely.
func (p *Parser) Parse(ctx context.Context, raw []byte) ([]parser.NormalizedRow, parser.FieldMapping, error) {
	select {
	case <-ctx.Done():
		return nil, parser.FieldMapping{}, ctx.Err()
	default:
	}

	var (
		rows []parser.NormalizedRow
		acc  accumulator
	)
	acc.reset(1)

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		// Header/account-type lines carry no record data.
		if strings.HasPrefix(line, "!") {
			continue
		}

		tag, value := line[0], strings.TrimSpace(line[1:])
		switch tag {
		case '^':
			rows = acc.flush(rows, lineNo+1)
		case 'D':
			acc.row.RawDate = value
			if d, err := parser.ParseDate(normalizeQIFDate(value)); err == nil {
				acc.row.Date = d
			}
			acc.nonEmpty = true
		case 'T', 'U':
			if d, err := parser.CleanAmount(value); err == nil {
				acc.row.Amount = d
				acc.row.HasAmount = true
			}
			acc.nonEmpty = true
		case 'P':
			acc.row.Payee = value
			if acc.row.Description == "" {
				acc.row.Description = value
			}
			acc.nonEmpty = true
		case 'M':
			acc.row.Notes = value
			if acc.row.Description == "" {
				acc.row.Description = value
			}
			acc.nonEmpty = true
		case 'L':
			// Category hints may carry a colon-delimited hierarchy;
			// only the first segment is used.
			if i := strings.Index(value, ":"); i >= 0 {
				value = value[:i]
			}
			acc.row.CategoryHint = strings.TrimSpace(value)
			acc.nonEmpty = true
		case 'N', 'C', 'A', 'S', 'E', '$':
			// Recognized but unused tags: number, cleared status,
			// address, split fields.
			acc.nonEmpty = true
		default:
			// Unknown tags are ignored.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parser.FieldMapping{}, fmt.Errorf("failed to scan flat-tag input: %w", err)
	}

	// End of input flushes a partial record.
	rows = acc.flush(rows, lineNo+1)

	if len(rows) == 0 {
		return nil, parser.FieldMapping{}, fmt.Errorf("flat-tag input contains no records: %w", domain.ErrNoRows)
	}

	mapping := parser.NewFieldMapping()
	mapping.Columns[parser.FieldDate] = "D"
	mapping.Columns[parser.FieldAmount] = "T"
	mapping.Columns[parser.FieldPayee] = "P"
	mapping.Columns[parser.FieldNotes] = "M"
	mapping.Columns[parser.FieldCategory] = "L"
	return rows, mapping, nil
}

// normalizeQIFDate rewrites the legacy D1/ 2'06 quote form into a slash form
// the shared date parser understands.
func normalizeQIFDate(s string) string {
	s = strings.ReplaceAll(s, "'", "/")
	return strings.ReplaceAll(s, " ", "")
}
