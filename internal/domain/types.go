// Package domain holds the core ledger types shared by every component.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger entry.
// Use ValidateEntryType to ensure validity before use.
type EntryType string

const (
	EntryIncome   EntryType = "income"
	EntryExpense  EntryType = "expense"
	EntryTransfer EntryType = "transfer"
)

// ClearingStatus is the lifecycle stage of an entry.
// Entries move uncleared → cleared → reconciled; reconciled entries are
// locked against everything except a status demotion.
type ClearingStatus string

const (
	StatusUncleared  ClearingStatus = "uncleared"
	StatusCleared    ClearingStatus = "cleared"
	StatusReconciled ClearingStatus = "reconciled"
)

// AccountType classifies an account.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountCash       AccountType = "cash"
	AccountInvestment AccountType = "investment"
)

var (
	validEntryTypes = map[EntryType]struct{}{
		EntryIncome: {}, EntryExpense: {}, EntryTransfer: {},
	}

	validStatuses = map[ClearingStatus]struct{}{
		StatusUncleared: {}, StatusCleared: {}, StatusReconciled: {},
	}

	validAccountTypes = map[AccountType]struct{}{
		AccountChecking: {}, AccountSavings: {}, AccountCredit: {},
		AccountCash: {}, AccountInvestment: {},
	}
)

// ValidateEntryType checks if the entry type is valid.
func ValidateEntryType(t EntryType) bool {
	_, ok := validEntryTypes[t]
	return ok
}

// ValidateStatus checks if the clearing status is valid.
func ValidateStatus(s ClearingStatus) bool {
	_, ok := validStatuses[s]
	return ok
}

// ValidateAccountType checks if the account type is valid.
func ValidateAccountType(t AccountType) bool {
	_, ok := validAccountTypes[t]
	return ok
}

// Split is one line of a split breakdown on an entry. When an entry carries
// splits, the split amounts must sum to the entry amount and the entry-level
// category becomes optional.
type Split struct {
	CategoryID string
	Amount     decimal.Decimal
	Note       string
}

// Entry is one recorded financial event. Amount is always stored positive;
// Type carries the sign. Transfers reference both a source and a destination
// account and move Amount between them.
type Entry struct {
	ID            string
	UserID        string
	AccountID     string
	DestAccountID string // transfers only
	Amount        decimal.Decimal
	Type          EntryType
	Date          time.Time // day precision
	Description   string
	Payee         string
	Notes         string
	Status        ClearingStatus
	CategoryID    string
	TagIDs        []string
	Splits        []Split
	Currency      string

	Flagged     bool
	NeedsReview bool
	Excluded    bool // excluded from reports
	Reversed    bool // reversed entries contribute nothing to balances
}

// NewEntry creates a validated entry with a fresh identifier and uncleared
// status. Amount must be strictly positive.
func NewEntry(userID, accountID string, amount decimal.Decimal, typ EntryType, date time.Time, description string) (*Entry, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if accountID == "" {
		return nil, fmt.Errorf("account ID cannot be empty")
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", amount)
	}
	if !ValidateEntryType(typ) {
		return nil, fmt.Errorf("invalid entry type %q", typ)
	}
	if date.IsZero() {
		return nil, fmt.Errorf("date cannot be zero")
	}
	if description == "" {
		return nil, fmt.Errorf("description cannot be empty")
	}

	return &Entry{
		ID:          uuid.New().String(),
		UserID:      userID,
		AccountID:   accountID,
		Amount:      amount,
		Type:        typ,
		Date:        DayOf(date),
		Description: description,
		Status:      StatusUncleared,
	}, nil
}

// DayOf truncates a timestamp to day precision in UTC.
func DayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Effect is the signed balance change an entry contributes to one account.
type Effect struct {
	AccountID string
	Delta     decimal.Decimal
}

// Effects returns the balance effects of the entry: income adds to the
// source account, expense subtracts, and a transfer subtracts from the
// source while adding to the destination. A reversed entry has no effect.
func (e *Entry) Effects() []Effect {
	if e.Reversed {
		return nil
	}
	switch e.Type {
	case EntryIncome:
		return []Effect{{AccountID: e.AccountID, Delta: e.Amount}}
	case EntryExpense:
		return []Effect{{AccountID: e.AccountID, Delta: e.Amount.Neg()}}
	case EntryTransfer:
		return []Effect{
			{AccountID: e.AccountID, Delta: e.Amount.Neg()},
			{AccountID: e.DestAccountID, Delta: e.Amount},
		}
	}
	return nil
}

// SplitTotal sums the split line amounts.
func (e *Entry) SplitTotal() decimal.Decimal {
	total := decimal.Zero
	for _, s := range e.Splits {
		total = total.Add(s.Amount)
	}
	return total
}

// HasTag reports whether the entry already carries the tag.
func (e *Entry) HasTag(tagID string) bool {
	for _, t := range e.TagIDs {
		if t == tagID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the entry. The balance engine snapshots the
// pre-update state with it so an update can reverse the old effect exactly.
func (e *Entry) Clone() *Entry {
	cp := *e
	cp.TagIDs = append([]string(nil), e.TagIDs...)
	cp.Splits = append([]Split(nil), e.Splits...)
	return &cp
}

// Account holds a running balance maintained exclusively by the balance
// engine. ValuationBaseline is an externally recorded mark for asset
// accounts valued by statements rather than transaction sums; the reported
// balance is Balance + ValuationBaseline.
type Account struct {
	ID                string
	UserID            string
	Name              string
	Type              AccountType
	Currency          string
	Balance           decimal.Decimal
	ValuationBaseline decimal.Decimal
}

// NewAccount creates a validated account with a zero balance.
func NewAccount(userID, name string, typ AccountType, currency string) (*Account, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID cannot be empty")
	}
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}
	if !ValidateAccountType(typ) {
		return nil, fmt.Errorf("invalid account type %q", typ)
	}
	if currency == "" {
		currency = "USD"
	}
	return &Account{
		ID:       uuid.New().String(),
		UserID:   userID,
		Name:     name,
		Type:     typ,
		Currency: currency,
	}, nil
}

// Category is a user-scoped spending category.
type Category struct {
	ID     string
	UserID string
	Name   string
}

// Tag is a user-scoped free-form label.
type Tag struct {
	ID     string
	UserID string
	Name   string
}
