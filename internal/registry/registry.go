// Package registry resolves a format parser from an explicit discriminator
// or by sniffing the content's leading bytes.
package registry

import (
	"fmt"

	"github.com/finledger/finledger/internal/parser"
	"github.com/finledger/finledger/internal/parsers/bankexport"
	"github.com/finledger/finledger/internal/parsers/delimited"
	"github.com/finledger/finledger/internal/parsers/flattag"
	"github.com/finledger/finledger/internal/parsers/statement"
)

// Format discriminates the supported source formats.
type Format string

const (
	FormatAuto       Format = "auto"
	FormatDelimited  Format = "delimited"
	FormatBankExport Format = "bank-export"
	FormatFlatTag    Format = "flat-tag"
	FormatStatement  Format = "statement-text"
)

// sniffLen bounds the header bytes used for format detection. Enough for
// magic numbers and a first header line in every supported format.
const sniffLen = 512

// Registry holds all registered parsers in sniff order. Bank-export and
// flat-tag markers are unambiguous so they are probed before the permissive
// delimited sniffer.
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers.
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			bankexport.NewParser(),
			flattag.NewParser(),
			statement.NewParser(),
			delimited.NewParser(),
		},
	}
}

// Register adds a custom parser.
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// Resolve returns the parser for an explicit format, or sniffs the content
// when the format is auto.
func (r *Registry) Resolve(format Format, raw []byte) (parser.Parser, error) {
	if format != FormatAuto && format != "" {
		for _, p := range r.parsers {
			if p.Name() == string(format) {
				return p, nil
			}
		}
		return nil, fmt.Errorf("unknown format %q", format)
	}

	header := raw
	if len(header) > sniffLen {
		header = header[:sniffLen]
	}
	for _, p := range r.parsers {
		if p.Sniff(header) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("could not detect format from content")
}

// ListParsers returns the names of all registered parsers.
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
