package balance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finledger/finledger/internal/domain"
	"github.com/finledger/finledger/internal/store"
)

var testDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

type fixture struct {
	st     *store.Store
	engine *Engine
	ctx    context.Context
}

func setup(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return &fixture{st: st, engine: New(st), ctx: context.Background()}
}

func (f *fixture) account(t *testing.T, userID, name string) *domain.Account {
	t.Helper()
	a, err := domain.NewAccount(userID, name, domain.AccountChecking, "USD")
	require.NoError(t, err)
	require.NoError(t, f.st.CreateAccount(f.ctx, a))
	return a
}

func (f *fixture) balance(t *testing.T, accountID string) decimal.Decimal {
	t.Helper()
	a, err := f.st.GetAccount(f.ctx, f.st.DB(), accountID)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) entry(t *testing.T, userID, accountID, amount string, typ domain.EntryType, desc string) *domain.Entry {
	t.Helper()
	amt, err := decimal.NewFromString(amount)
	require.NoError(t, err)
	e, err := domain.NewEntry(userID, accountID, amt, typ, testDay, desc)
	require.NoError(t, err)
	return e
}

func TestCreate_IncomeAndExpense(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	require.NoError(t, f.engine.Create(f.ctx, f.entry(t, "u1", a.ID, "2000.00", domain.EntryIncome, "Paycheck")))
	assert.Equal(t, "2000", f.balance(t, a.ID).String())

	require.NoError(t, f.engine.Create(f.ctx, f.entry(t, "u1", a.ID, "4.50", domain.EntryExpense, "Coffee Shop")))
	assert.Equal(t, "1995.5", f.balance(t, a.ID).String())
}

func TestCreate_TransferMovesBothBalances(t *testing.T) {
	f := setup(t)
	src := f.account(t, "u1", "Checking")
	dst := f.account(t, "u1", "Savings")

	e := f.entry(t, "u1", src.ID, "100", domain.EntryTransfer, "Monthly savings")
	e.DestAccountID = dst.ID
	require.NoError(t, f.engine.Create(f.ctx, e))

	assert.Equal(t, "-100", f.balance(t, src.ID).String())
	assert.Equal(t, "100", f.balance(t, dst.ID).String())
}

func TestCreate_InvalidRejectedWithoutBalanceChange(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "5", domain.EntryExpense, "bad")
	e.Amount = decimal.Zero
	err := f.engine.Create(f.ctx, e)
	assert.True(t, errors.Is(err, domain.ErrInvalid))
	assert.True(t, f.balance(t, a.ID).IsZero())
}

func TestCreate_CrossUserAccountRejected(t *testing.T) {
	f := setup(t)
	a := f.account(t, "owner", "Checking")

	e := f.entry(t, "intruder", a.ID, "5", domain.EntryExpense, "sneaky")
	err := f.engine.Create(f.ctx, e)
	assert.True(t, errors.Is(err, domain.ErrCrossUser))
}

// Updating must move the balance by exactly the difference between the old
// and new effects, not re-apply the new effect on top.
func TestUpdate_ReversesOldEffect(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Groceries")
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.Equal(t, "-50", f.balance(t, a.ID).String())

	e.Amount = decimal.NewFromInt(75)
	require.NoError(t, f.engine.Update(f.ctx, e))
	assert.Equal(t, "-75", f.balance(t, a.ID).String())

	// Flipping the direction swings by old + new.
	e.Type = domain.EntryIncome
	require.NoError(t, f.engine.Update(f.ctx, e))
	assert.Equal(t, "75", f.balance(t, a.ID).String())
}

func TestUpdate_MoveBetweenAccounts(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")
	b := f.account(t, "u1", "Credit Card")

	e := f.entry(t, "u1", a.ID, "30", domain.EntryExpense, "Dinner")
	require.NoError(t, f.engine.Create(f.ctx, e))

	e.AccountID = b.ID
	require.NoError(t, f.engine.Update(f.ctx, e))
	assert.True(t, f.balance(t, a.ID).IsZero(), "old account restored")
	assert.Equal(t, "-30", f.balance(t, b.ID).String())
}

func TestDelete_RestoresBalance(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Groceries")
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.NoError(t, f.engine.Delete(f.ctx, "u1", e.ID))

	assert.True(t, f.balance(t, a.ID).IsZero())
	_, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestDelete_TransferRestoresBoth(t *testing.T) {
	f := setup(t)
	src := f.account(t, "u1", "Checking")
	dst := f.account(t, "u1", "Savings")

	e := f.entry(t, "u1", src.ID, "100", domain.EntryTransfer, "Savings move")
	e.DestAccountID = dst.ID
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.NoError(t, f.engine.Delete(f.ctx, "u1", e.ID))

	assert.True(t, f.balance(t, src.ID).IsZero())
	assert.True(t, f.balance(t, dst.ID).IsZero())
}

func TestReverse_VoidsWithoutDeleting(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Disputed charge")
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.NoError(t, f.engine.Reverse(f.ctx, "u1", e.ID))

	assert.True(t, f.balance(t, a.ID).IsZero())
	got, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	require.NoError(t, err)
	assert.True(t, got.Reversed)

	// Reversing twice would double-credit the account.
	err = f.engine.Reverse(f.ctx, "u1", e.ID)
	assert.True(t, errors.Is(err, domain.ErrInvalid))
	assert.True(t, f.balance(t, a.ID).IsZero())
}

func TestSetStatus_Lifecycle(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Groceries")
	require.NoError(t, f.engine.Create(f.ctx, e))

	require.NoError(t, f.engine.SetStatus(f.ctx, "u1", e.ID, domain.StatusCleared))
	require.NoError(t, f.engine.SetStatus(f.ctx, "u1", e.ID, domain.StatusReconciled))

	got, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciled, got.Status)
	// Status changes never touch balances.
	assert.Equal(t, "-50", f.balance(t, a.ID).String())
}

func TestReconciled_Locked(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Groceries")
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.NoError(t, f.engine.SetStatus(f.ctx, "u1", e.ID, domain.StatusReconciled))

	// Amount edits, deletes, and reversals are all rejected.
	mod, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	require.NoError(t, err)
	mod.Amount = decimal.NewFromInt(60)
	assert.True(t, errors.Is(f.engine.Update(f.ctx, mod), domain.ErrReconciled))
	assert.True(t, errors.Is(f.engine.Delete(f.ctx, "u1", e.ID), domain.ErrReconciled))
	assert.True(t, errors.Is(f.engine.Reverse(f.ctx, "u1", e.ID), domain.ErrReconciled))
	assert.Equal(t, "-50", f.balance(t, a.ID).String())
}

// The one mutation a reconciled entry accepts is a status demotion, which
// unlocks it for ordinary edits again.
func TestReconciled_StatusDemotionAllowed(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "50", domain.EntryExpense, "Groceries")
	require.NoError(t, f.engine.Create(f.ctx, e))
	require.NoError(t, f.engine.SetStatus(f.ctx, "u1", e.ID, domain.StatusReconciled))

	demoted, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	require.NoError(t, err)
	demoted.Status = domain.StatusCleared
	require.NoError(t, f.engine.Update(f.ctx, demoted))

	// A demotion bundled with another change is still rejected.
	require.NoError(t, f.engine.SetStatus(f.ctx, "u1", e.ID, domain.StatusReconciled))
	bundled, err := f.st.GetEntry(f.ctx, f.st.DB(), e.ID)
	require.NoError(t, err)
	bundled.Status = domain.StatusCleared
	bundled.Amount = decimal.NewFromInt(60)
	assert.True(t, errors.Is(f.engine.Update(f.ctx, bundled), domain.ErrReconciled))
}

func TestCompleteReconciliation(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e1 := f.entry(t, "u1", a.ID, "2000", domain.EntryIncome, "Paycheck")
	e2 := f.entry(t, "u1", a.ID, "4.50", domain.EntryExpense, "Coffee Shop")
	require.NoError(t, f.engine.Create(f.ctx, e1))
	require.NoError(t, f.engine.Create(f.ctx, e2))

	variance, err := f.engine.CompleteReconciliation(f.ctx, "u1", a.ID,
		[]string{e1.ID, e2.ID}, decimal.NewFromFloat(1995.50))
	require.NoError(t, err)
	assert.True(t, variance.IsZero(), "variance = %s", variance)

	for _, id := range []string{e1.ID, e2.ID} {
		got, err := f.st.GetEntry(f.ctx, f.st.DB(), id)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusReconciled, got.Status)
	}
}

func TestCompleteReconciliation_Variance(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "100", domain.EntryIncome, "Deposit")
	require.NoError(t, f.engine.Create(f.ctx, e))

	variance, err := f.engine.CompleteReconciliation(f.ctx, "u1", a.ID,
		[]string{e.ID}, decimal.NewFromInt(110))
	require.NoError(t, err)
	assert.Equal(t, "10", variance.String())
}

func TestDelete_CrossUserRejected(t *testing.T) {
	f := setup(t)
	a := f.account(t, "u1", "Checking")

	e := f.entry(t, "u1", a.ID, "10", domain.EntryExpense, "mine")
	require.NoError(t, f.engine.Create(f.ctx, e))
	assert.True(t, errors.Is(f.engine.Delete(f.ctx, "u2", e.ID), domain.ErrCrossUser))
}
