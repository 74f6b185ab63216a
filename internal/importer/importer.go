// Package importer runs the batch import pipeline: parse, build, dedup,
// categorize, persist. Parsing and categorization are read-only and run
// before the write transaction; the transaction itself only checks
// duplicates and commits entries, one savepoint per row.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/finledger/finledger/internal/balance"
	"github.com/finledger/finledger/internal/builder"
	"github.com/finledger/finledger/internal/dedup"
	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/parser"
	"github.com/finledger/finledger/internal/registry"
	"github.com/finledger/finledger/internal/rules"
	"github.com/finledger/finledger/internal/store"
	"github.com/finledger/finledger/internal/suggest"
)

// maxRowErrors caps the per-row error list in a batch result so a
// completely wrong file does not echo itself back line by line.
const maxRowErrors = 50

// RowError records one failed row.
type RowError struct {
	Row     int
	Message string
}

// BatchResult summarizes an import.
type BatchResult struct {
	Imported   int
	Skipped    int
	Duplicates int
	Errors     []RowError
}

// Importer wires the pipeline stages together.
type Importer struct {
	store    *store.Store
	engine   *balance.Engine
	registry *registry.Registry
	detector *dedup.Detector
	suggest  *suggest.Suggester
	log      *slog.Logger
}

func New(st *store.Store, engine *balance.Engine, reg *registry.Registry, log *slog.Logger) *Importer {
	if log == nil {
		log = slog.Default()
	}
	return &Importer{
		store:    st,
		engine:   engine,
		registry: reg,
		detector: dedup.New(st),
		suggest:  suggest.New(st),
		log:      log,
	}
}

type prepared struct {
	line  int
	entry *domain.Entry
}

// Import parses raw source bytes and persists the resulting entries for
// the account. A source that yields zero usable rows is rejected before
// anything is written. Individual bad rows roll back alone; the rest of
// the batch commits.
func (im *Importer) Import(ctx context.Context, userID, accountID string, format registry.Format, raw []byte) (*BatchResult, error) {
	p, err := im.registry.Resolve(format, raw)
	if err != nil {
		return nil, err
	}
	rows, _, err := p.Parse(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("parse (%s): %w", p.Name(), err)
	}

	acct, err := im.store.GetAccount(ctx, im.store.DB(), accountID)
	if err != nil {
		return nil, err
	}
	if acct.UserID != userID {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrCrossUser)
	}

	result := &BatchResult{}
	batch, err := im.prepare(ctx, userID, acct, rows, result)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 && result.Skipped > 0 {
		return nil, fmt.Errorf("every row skipped: %w", domain.ErrNoRows)
	}

	checkDup := dedup.AppliesTo(p.Name())
	err = im.store.WithTx(ctx, func(tx *sql.Tx) error {
		for i, pr := range batch {
			rowErr := store.WithSavepoint(ctx, tx, fmt.Sprintf("row_%d", i), func() error {
				if checkDup {
					dup, err := im.detector.IsDuplicate(ctx, tx, pr.entry)
					if err != nil {
						return err
					}
					if dup {
						result.Duplicates++
						return nil
					}
				}
				if err := im.engine.CreateTx(ctx, tx, pr.entry); err != nil {
					return err
				}
				result.Imported++
				return nil
			})
			if rowErr != nil {
				if len(result.Errors) < maxRowErrors {
					result.Errors = append(result.Errors, RowError{Row: pr.line, Message: rowErr.Error()})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.log.Info("import complete",
		"parser", p.Name(),
		"account", accountID,
		"imported", result.Imported,
		"skipped", result.Skipped,
		"duplicates", result.Duplicates,
		"errors", len(result.Errors))
	return result, nil
}

// prepare builds and categorizes candidate entries outside the write
// transaction. Category hints from the source resolve against existing
// category names; rules run next, then the history heuristic for whatever
// is still uncategorized.
func (im *Importer) prepare(ctx context.Context, userID string, acct *domain.Account, rows []parser.NormalizedRow, result *BatchResult) ([]prepared, error) {
	ruleSet, err := im.store.ListRules(ctx, userID)
	if err != nil {
		return nil, err
	}
	eng := rules.NewEngine(ruleSet)

	hintCache := make(map[string]string)
	var batch []prepared
	for _, row := range rows {
		e, reason := builder.Build(userID, acct.ID, acct.Currency, row)
		if reason != "" {
			result.Skipped++
			im.log.Debug("row skipped", "line", row.Line, "reason", reason)
			continue
		}

		if row.CategoryHint != "" {
			if id, err := im.resolveHint(ctx, userID, row.CategoryHint, hintCache); err != nil {
				return nil, err
			} else if id != "" {
				e.CategoryID = id
				e.NeedsReview = false
			}
		}
		if e.CategoryID == "" {
			eng.Apply(e)
		}
		if e.CategoryID == "" {
			sug, err := im.suggest.Suggest(ctx, e)
			if err != nil {
				return nil, err
			}
			if sug != nil {
				// Suggested, not asserted: the entry stays flagged for review.
				e.CategoryID = sug.CategoryID
			}
		}
		batch = append(batch, prepared{line: row.Line, entry: e})
	}
	return batch, nil
}

func (im *Importer) resolveHint(ctx context.Context, userID, name string, cache map[string]string) (string, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	cat, err := im.store.FindCategoryByName(ctx, userID, name)
	if errors.Is(err, domain.ErrNotFound) {
		cache[name] = ""
		return "", nil
	}
	if err != nil {
		return "", err
	}
	cache[name] = cat.ID
	return cat.ID, nil
}
