package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/builder"
	"github.com/finledger/finledger/internal/parser"
	"github.com/finledger/finledger/internal/registry"
)

// defaultPreviewLimit bounds preview output when the caller passes no
// limit.
const defaultPreviewLimit = 20

// PreviewRow is one candidate row shown before committing an import.
type PreviewRow struct {
	Line         int
	Date         time.Time
	Description  string
	Payee        string
	Amount       decimal.Decimal
	Type         string
	CategoryHint string
	SkipReason   string
}

// Preview reports how a source would import without writing anything.
type Preview struct {
	Parser    string
	Mapping   parser.FieldMapping
	TotalRows int
	Rows      []PreviewRow
}

// Preview parses the source and builds candidate rows without touching
// the store. Skipped rows appear with their reason so mapping problems
// are visible before anything commits.
func (im *Importer) Preview(ctx context.Context, format registry.Format, raw []byte, limit int) (*Preview, error) {
	if limit <= 0 {
		limit = defaultPreviewLimit
	}
	p, err := im.registry.Resolve(format, raw)
	if err != nil {
		return nil, err
	}
	rows, mapping, err := p.Parse(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("parse (%s): %w", p.Name(), err)
	}

	pv := &Preview{Parser: p.Name(), Mapping: mapping, TotalRows: len(rows)}
	for _, row := range rows {
		if len(pv.Rows) == limit {
			break
		}
		e, reason := builder.Build("preview", "preview", "", row)
		pr := PreviewRow{Line: row.Line, CategoryHint: row.CategoryHint}
		if reason != "" {
			pr.SkipReason = reason
			pr.Description = row.Description
		} else {
			pr.Date = e.Date
			pr.Description = e.Description
			pr.Payee = e.Payee
			pr.Amount = e.Amount
			pr.Type = string(e.Type)
		}
		pv.Rows = append(pv.Rows, pr)
	}
	return pv, nil
}
