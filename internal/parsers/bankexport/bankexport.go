// Package bankexport parses OFX/QFX bank exports, both well-formed XML and
// legacy unterminated tag-per-line SGML.
package bankexport

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
)

// Parser is stateless and safe for concurrent use.
type Parser struct{}

var parserInstance = &Parser{}

// NewParser returns the shared bank-export parser instance.
func NewParser() *Parser {
	return parserInstance
}

// Name returns the parser identifier.
func (p *Parser) Name() string {
	return "bank-export"
}

// Sniff checks the leading bytes for OFX markers (v1 SGML and v2 XML).
func (p *Parser) Sniff(header []byte) bool {
	upper := strings.ToUpper(string(header))
	return strings.Contains(upper, "OFXHEADER") ||
		strings.Contains(upper, "<?OFX") ||
		strings.Contains(upper, "<OFX>")
}

// placeholderDescription is used when a transaction carries neither a payee
// name nor a memo.
const placeholderDescription = "(no description)"

// Parse repairs legacy markup if needed, runs structural parsing, and emits
// one normalized row per transaction node.
func (p *Parser) Parse(ctx context.Context, raw []byte) ([]parser.NormalizedRow, parser.FieldMapping, error) {
	select {
	case <-ctx.Done():
		return nil, parser.FieldMapping{}, ctx.Err()
	default:
	}

	repaired := repairLegacyMarkup(raw)

	resp, err := ofxgo.ParseResponse(bytes.NewReader(repaired))
	if err != nil {
		return nil, parser.FieldMapping{}, fmt.Errorf("failed to parse bank export (%d bytes): %w", len(raw), err)
	}

	var rows []parser.NormalizedRow
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		rows = appendTransactions(rows, stmt.BankTranList.Transactions)
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		rows = appendTransactions(rows, stmt.BankTranList.Transactions)
	}

	if len(rows) == 0 {
		return nil, parser.FieldMapping{}, fmt.Errorf("bank export contains no transactions: %w", domain.ErrNoRows)
	}

	mapping := parser.NewFieldMapping()
	mapping.Columns[parser.FieldDate] = "DTPOSTED"
	mapping.Columns[parser.FieldDescription] = "NAME"
	mapping.Columns[parser.FieldAmount] = "TRNAMT"
	mapping.Columns[parser.FieldNotes] = "MEMO"
	return rows, mapping, nil
}

func appendTransactions(rows []parser.NormalizedRow, txns []ofxgo.Transaction) []parser.NormalizedRow {
	for _, txn := range txns {
		date := txn.DtPosted.Time
		if date.IsZero() {
			date = txn.DtUser.Time
		}

		// Description falls back payee-name → memo → placeholder.
		desc := strings.TrimSpace(txn.Name.String())
		if desc == "" {
			desc = strings.TrimSpace(txn.Memo.String())
		}
		if desc == "" {
			desc = placeholderDescription
		}

		row := parser.NormalizedRow{
			Line:        len(rows) + 1,
			Description: desc,
			Payee:       strings.TrimSpace(txn.Name.String()),
			TypeHint:    strings.ToUpper(txn.TrnType.String()),
			Notes:       strings.TrimSpace(txn.Memo.String()),
		}
		// TRNAMT renders exactly as decimal text; no float conversion.
		if amt, err := decimal.NewFromString(txn.TrnAmt.String()); err == nil {
			row.Amount = amt
			row.HasAmount = true
		}
		if !date.IsZero() {
			row.Date = domain.DayOf(date)
			row.RawDate = date.Format("2006-01-02")
		}
		rows = append(rows, row)
	}
	return rows
}

// leafTags are the OFX leaf fields the repair pass closes. Aggregate tags
// (OFX, STMTTRN, BANKTRANLIST, ...) keep their explicit closers.
var leafTags = []string{
	"TRNTYPE", "DTPOSTED", "DTUSER", "TRNAMT", "FITID", "NAME", "MEMO",
	"CHECKNUM", "REFNUM", "ACCTID", "BANKID", "ACCTTYPE", "CURDEF",
	"DTSTART", "DTEND", "BALAMT", "DTASOF", "TRNUID", "CODE", "SEVERITY",
	"LANGUAGE", "ORG", "FID", "DTSERVER", "UNIQUEID",
}

// repairLegacyMarkup detects unterminated tag-per-line SGML by the absence of
// a closing root tag and synthesizes closing tags for the known leaf fields
// so structural parsing can proceed. Well-formed input passes through
// untouched.
func repairLegacyMarkup(raw []byte) []byte {
	content := string(raw)
	if strings.Contains(strings.ToUpper(content), "</OFX>") {
		return raw
	}

	lines := strings.Split(content, "\n")
	var b strings.Builder
	sawRoot := false
	for _, line := range lines {
		trimmed := strings.TrimRight(line, "\r")
		repaired := repairLine(trimmed)
		if strings.Contains(strings.ToUpper(repaired), "<OFX>") {
			sawRoot = true
		}
		b.WriteString(repaired)
		b.WriteString("\n")
	}
	if sawRoot {
		b.WriteString("</OFX>\n")
	}
	return []byte(b.String())
}

// repairLine closes a known leaf tag carrying a value on the same line.
func repairLine(line string) string {
	stripped := strings.TrimSpace(line)
	if !strings.HasPrefix(stripped, "<") || strings.HasPrefix(stripped, "</") {
		return line
	}
	end := strings.Index(stripped, ">")
	if end < 0 {
		return line
	}
	tag := strings.ToUpper(stripped[1:end])
	value := stripped[end+1:]
	if value == "" || strings.Contains(value, "</") {
		return line
	}
	for _, leaf := range leafTags {
		if tag == leaf {
			return line + "</" + tag + ">"
		}
	}
	return line
}
