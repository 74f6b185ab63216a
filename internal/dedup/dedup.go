// Package dedup guards re-imports: an incoming entry matching an existing
// one on account, amount, and description within a one-day window is
// dropped as a duplicate.
package dedup

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/store"
)

// Finder is the store query the detector needs. The match window is
// store.DuplicateWindowDays either side of the incoming date.
type Finder interface {
	FindDuplicate(ctx context.Context, q store.DBTX, accountID string, amount decimal.Decimal, description string, date time.Time) (bool, error)
}

// Detector answers whether an incoming entry duplicates a persisted one.
type Detector struct {
	finder Finder
}

func New(finder Finder) *Detector {
	return &Detector{finder: finder}
}

// IsDuplicate reports whether an equivalent entry already exists. Runs on
// the import transaction so rows persisted earlier in the same batch are
// visible.
func (d *Detector) IsDuplicate(ctx context.Context, q store.DBTX, e *domain.Entry) (bool, error) {
	return d.finder.FindDuplicate(ctx, q, e.AccountID, e.Amount, e.Description, e.Date)
}

// AppliesTo reports whether duplicate detection runs for a source format.
// Machine-generated exports carry stable descriptions, so equality is a
// reliable signal; hand-labeled sources (spreadsheets, statement text)
// legitimately repeat and are exempt.
func AppliesTo(format string) bool {
	switch format {
	case "bank-export", "flat-tag":
		return true
	}
	return false
}
