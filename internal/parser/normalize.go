package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// dateFormats is the fixed ordered list tried before general parsing. The
// order means MM/DD wins over DD/MM for inputs where both parse ("03/04/2024");
// this is a documented limitation of format-order date inference, not a bug
// to fix by locale detection.
var dateFormats = []string{
	"01/02/2006",
	"02/01/2006",
	"2006-01-02",
	"2006/01/02",
	"01-02-2006",
	"02-01-2006",
	"1/2/2006",
	"2/1/2006",
	"01/02/06",
	"1/2/06",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"20060102",
}

// ParseDate tries the ordered format list and returns the first success,
// truncated to day precision.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	// General fallback for fully qualified timestamps.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// currencyRunes are stripped from amount strings before parsing.
const currencyRunes = "$€£¥₹"

// CleanAmount normalizes a source amount string: strips currency symbols,
// thousands separators and whitespace, and treats parenthesized values as
// negative.
func CleanAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(currencyRunes, r), r == ',', r == ' ':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount %q has no digits", s)
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unparsable amount %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
