// Package export writes a user's ledger as delimited text. Output is
// deterministic (date then ID order, fixed columns) and round-trips
// through the delimited parser.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/store"
)

// header is the fixed column set. The names are chosen so the delimited
// parser's field inference maps them straight back.
var header = []string{
	"date", "payee", "description", "amount", "type",
	"category", "account", "tags", "notes", "flag", "status", "needs_review",
}

// Exporter renders entries with category, account, and tag IDs resolved
// to names.
type Exporter struct {
	store *store.Store
}

func New(st *store.Store) *Exporter {
	return &Exporter{store: st}
}

// Export writes all of a user's entries to w as CSV.
func (ex *Exporter) Export(ctx context.Context, userID string, w io.Writer) error {
	entries, err := ex.store.ListEntries(ctx, ex.store.DB(), userID)
	if err != nil {
		return err
	}
	catNames, acctNames, tagNames, err := ex.nameIndexes(ctx, userID)
	if err != nil {
		return err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		if err := cw.Write(record(e, catNames, acctNames, tagNames)); err != nil {
			return fmt.Errorf("write entry %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// record renders one entry. The amount is signed the way a bank export
// would sign it: expenses and transfer sources negative, income positive.
func record(e *domain.Entry, catNames, acctNames, tagNames map[string]string) []string {
	amount := e.Amount
	if e.Type == domain.EntryExpense || e.Type == domain.EntryTransfer {
		amount = amount.Neg()
	}
	tags := make([]string, 0, len(e.TagIDs))
	for _, id := range e.TagIDs {
		if name, ok := tagNames[id]; ok {
			tags = append(tags, name)
		}
	}
	sort.Strings(tags)

	return []string{
		e.Date.Format("2006-01-02"),
		e.Payee,
		e.Description,
		amount.StringFixed(2),
		string(e.Type),
		catNames[e.CategoryID],
		acctNames[e.AccountID],
		strings.Join(tags, "|"),
		e.Notes,
		boolMark(e.Flagged),
		string(e.Status),
		boolMark(e.NeedsReview),
	}
}

func boolMark(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func (ex *Exporter) nameIndexes(ctx context.Context, userID string) (cats, accts, tags map[string]string, err error) {
	categories, err := ex.store.ListCategories(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	accounts, err := ex.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}
	tagList, err := ex.store.ListTags(ctx, userID)
	if err != nil {
		return nil, nil, nil, err
	}

	cats = make(map[string]string, len(categories))
	for _, c := range categories {
		cats[c.ID] = c.Name
	}
	accts = make(map[string]string, len(accounts))
	for _, a := range accounts {
		accts[a.ID] = a.Name
	}
	tags = make(map[string]string, len(tagList))
	for _, t := range tagList {
		tags[t.ID] = t.Name
	}
	return cats, accts, tags, nil
}
