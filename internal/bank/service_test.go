package bank

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/keylock"
	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"
	"bank-terminal-go/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

type fakeStepUp struct {
	verified  bool
	escalated []string
}

func (f *fakeStepUp) StepUpVerified(context.Context, string) (bool, error) {
	return f.verified, nil
}

func (f *fakeStepUp) EscalateStepUp(_ context.Context, acct *models.Account) (string, error) {
	f.escalated = append(f.escalated, acct.Number)
	return "handle-" + acct.Number, nil
}

type fixture struct {
	svc    *Service
	dir    *testutil.Directory
	ledger *testutil.Ledger
	sink   *testutil.Sink
	stepUp *fakeStepUp
	clock  *security.ManualClock
}

func newFixture(t *testing.T, accounts ...*models.Account) *fixture {
	t.Helper()
	policy := models.DefaultSecurityPolicy()
	clock := security.NewManualClock(testStart)
	f := &fixture{
		dir:    testutil.NewDirectory(accounts...),
		ledger: &testutil.Ledger{},
		sink:   &testutil.Sink{},
		stepUp: &fakeStepUp{},
		clock:  clock,
	}
	f.svc = NewService(ServiceParams{
		Directory: f.dir,
		Ledger:    f.ledger,
		Locks:     keylock.New(),
		Detector:  security.NewDetector(policy, clock, f.sink),
		StepUp:    f.stepUp,
		Events:    f.sink,
		Audit:     f.sink,
		Clock:     clock,
		Policy:    policy,
	})
	return f
}

func amount(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func (f *fixture) balance(t *testing.T, number string) decimal.Decimal {
	t.Helper()
	acct, err := f.dir.Find(context.Background(), number)
	require.NoError(t, err)
	return acct.Balance
}

func TestDeposit(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := models.WithChannelContext(context.Background(), &models.ChannelContext{Channel: "terminal"})

	entry, err := f.svc.Deposit(ctx, "APNA100000000001", amount(1000))
	require.NoError(t, err)
	assert.Equal(t, models.EntryDeposit, entry.Type)
	assert.True(t, entry.BalanceAfter.Equal(amount(6000)))
	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(6000)))

	require.Len(t, f.ledger.Entries, 1)
	assert.Equal(t, "terminal", f.ledger.Entries[0].Channel)
	assert.Contains(t, f.sink.Audit, "DEPOSIT APNA100000000001 amount=1000.00 balance=6000.00 channel=terminal")
}

func TestDeposit_Limits(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := context.Background()

	_, err := f.svc.Deposit(ctx, "APNA100000000001", amount(100))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.svc.Deposit(ctx, "APNA100000000001", amount(-10))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, "APNA100000000001", decimal.RequireFromString("600.005"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.svc.Deposit(ctx, "APNA100000000001", amount(100001))
	assert.ErrorIs(t, err, ErrAboveMaximum)

	assert.Empty(t, f.ledger.Entries)
}

func TestWithdraw_PersistFailureKeepsBalance(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	f.dir.FailPersist = true

	_, err := f.svc.Withdraw(context.Background(), "APNA100000000001", amount(500))
	require.ErrorIs(t, err, testutil.ErrPersistFailed)

	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(5000)))
	live, _ := f.dir.Find(context.Background(), "APNA100000000001")
	assert.True(t, live.DailyWithdrawn.IsZero())
	assert.True(t, live.LastWithdrawalAt.IsZero())
	assert.Empty(t, f.ledger.Entries)
}

func TestWithdraw_DailyLimitResetsNextDay(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 200000, testStart))
	ctx := context.Background()

	_, err := f.svc.Withdraw(ctx, "APNA100000000001", amount(30000))
	require.NoError(t, err)

	_, err = f.svc.Withdraw(ctx, "APNA100000000001", amount(30000))
	assert.ErrorIs(t, err, ErrDailyLimit)

	_, err = f.svc.Withdraw(ctx, "APNA100000000001", amount(20000))
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Withdraw(ctx, "APNA100000000001", amount(30000))
	require.NoError(t, err)

	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(120000)))
}

func TestWithdraw_Rules(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := context.Background()

	_, err := f.svc.Withdraw(ctx, "APNA100000000001", amount(100))
	assert.ErrorIs(t, err, ErrBelowMinimum)

	_, err = f.svc.Withdraw(ctx, "APNA100000000001", amount(6000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.svc.Withdraw(ctx, "APNA999999999999", amount(600))
	assert.ErrorIs(t, err, store.ErrAccountNotFound)
}

func TestWithdraw_InactiveAccount(t *testing.T) {
	acct := testutil.Account("APNA100000000001", "4826", 5000, testStart)
	acct.Status = models.StatusLocked
	f := newFixture(t, acct)

	_, err := f.svc.Withdraw(context.Background(), "APNA100000000001", amount(500))
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestWithdraw_BalanceFractionNeedsStepUp(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := context.Background()

	_, err := f.svc.Withdraw(ctx, "APNA100000000001", amount(4500))
	require.ErrorIs(t, err, auth.ErrStepUpRequired)

	var stepUp *auth.StepUpError
	require.True(t, errors.As(err, &stepUp))
	assert.Equal(t, "handle-APNA100000000001", stepUp.Handle)
	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(5000)))
	require.NotEmpty(t, f.sink.Events)
	assert.Equal(t, security.LevelMedium, f.sink.Events[0].Level)

	f.stepUp.verified = true
	_, err = f.svc.Withdraw(ctx, "APNA100000000001", amount(4500))
	require.NoError(t, err)
	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(500)))
}

func TestTransfer(t *testing.T) {
	f := newFixture(t,
		testutil.Account("APNA100000000001", "4826", 25000, testStart),
		testutil.Account("APNA100000000002", "7391", 1000, testStart))
	ctx := context.Background()

	out, err := f.svc.Transfer(ctx, "APNA100000000001", "APNA100000000002", amount(2500))
	require.NoError(t, err)
	assert.Equal(t, models.EntryTransferOut, out.Type)
	assert.Equal(t, "APNA100000000002", out.Counterparty)

	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(22500)))
	assert.True(t, f.balance(t, "APNA100000000002").Equal(amount(3500)))

	require.Len(t, f.ledger.Entries, 2)
	assert.Equal(t, models.EntryTransferIn, f.ledger.Entries[1].Type)
	assert.Equal(t, "APNA100000000002", f.ledger.Entries[1].AccountNumber)
	assert.Equal(t, 1, f.dir.Persists, "both sides persisted together")
}

func TestTransfer_Rejections(t *testing.T) {
	f := newFixture(t,
		testutil.Account("APNA100000000001", "4826", 200000, testStart),
		testutil.Account("APNA100000000002", "7391", 1000, testStart))
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, "APNA100000000001", "APNA100000000001", amount(100))
	assert.ErrorIs(t, err, ErrSelfTransfer)

	_, err = f.svc.Transfer(ctx, "APNA100000000001", "APNA999999999999", amount(100))
	assert.ErrorIs(t, err, ErrRecipientNotFound)

	_, err = f.svc.Transfer(ctx, "APNA100000000002", "APNA100000000001", amount(5000))
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.svc.Transfer(ctx, "APNA100000000001", "APNA100000000002", amount(60000))
	assert.ErrorIs(t, err, auth.ErrStepUpRequired)
	assert.Equal(t, []string{"APNA100000000001"}, f.stepUp.escalated)

	assert.True(t, f.balance(t, "APNA100000000002").Equal(amount(1000)))
}

func TestTransfer_PersistFailureRollsBackBothSides(t *testing.T) {
	f := newFixture(t,
		testutil.Account("APNA100000000001", "4826", 25000, testStart),
		testutil.Account("APNA100000000002", "7391", 1000, testStart))
	f.dir.FailPersist = true

	_, err := f.svc.Transfer(context.Background(), "APNA100000000001", "APNA100000000002", amount(2500))
	require.Error(t, err)

	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(25000)))
	assert.True(t, f.balance(t, "APNA100000000002").Equal(amount(1000)))
}

func TestVelocityFlagsAccount(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 100000, testStart))
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := f.svc.Deposit(ctx, "APNA100000000001", amount(500))
		require.NoError(t, err)
	}

	_, err := f.svc.Withdraw(ctx, "APNA100000000001", amount(500))
	require.ErrorIs(t, err, auth.ErrSuspiciousActivity)

	durable, _ := f.dir.Durable("APNA100000000001")
	assert.Equal(t, models.StatusUnderReview, durable.Status)
	assert.Contains(t, f.sink.Audit, "Account APNA100000000001 flagged for review: rapid transactions")

	_, err = f.svc.Deposit(ctx, "APNA100000000001", amount(500))
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestPayBill(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := context.Background()

	_, err := f.svc.PayBill(ctx, "APNA100000000001", "Cable", "X1", amount(100))
	assert.ErrorIs(t, err, ErrInvalidBillType)

	_, err = f.svc.PayBill(ctx, "APNA100000000001", BillWater, "", amount(100))
	assert.ErrorIs(t, err, ErrMissingReference)

	entry, err := f.svc.PayBill(ctx, "APNA100000000001", BillElectricity, "EB-2291", amount(1200))
	require.NoError(t, err)
	assert.Equal(t, models.EntryBillPayment, entry.Type)
	assert.Equal(t, "Electricity bill, ref EB-2291", entry.Description)
	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(3800)))
}

func TestSavingsTransactionLimit(t *testing.T) {
	acct := testutil.Account("APNA100000000001", "4826", 90000, testStart)
	acct.Type = models.AccountTypeSavings
	f := newFixture(t, acct)

	_, err := f.svc.Deposit(context.Background(), "APNA100000000001", amount(60000))
	assert.ErrorIs(t, err, ErrSavingsLimit)
}

func TestChangePIN(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.ChangePIN(ctx, "APNA100000000001", "0000", "5917"), ErrInvalidPIN)
	assert.ErrorIs(t, f.svc.ChangePIN(ctx, "APNA100000000001", "4826", "4826"), ErrSamePIN)
	assert.ErrorIs(t, f.svc.ChangePIN(ctx, "APNA100000000001", "4826", "1111"), security.ErrPINWeak)
	assert.ErrorIs(t, f.svc.ChangePIN(ctx, "APNA100000000001", "4826", "59a7"), security.ErrPINFormat)

	require.NoError(t, f.svc.ChangePIN(ctx, "APNA100000000001", "4826", "5917"))
	durable, _ := f.dir.Durable("APNA100000000001")
	assert.True(t, security.Verify(durable.PinDigest, "5917"))
	assert.Contains(t, f.sink.Audit, "PIN changed for account APNA100000000001")
}

func TestApplyInterest(t *testing.T) {
	savings := testutil.Account("APNA100000000001", "4826", 10000, testStart)
	savings.Type = models.AccountTypeSavings
	f := newFixture(t, savings, testutil.Account("APNA100000000002", "7391", 10000, testStart))
	ctx := context.Background()

	entry, err := f.svc.ApplyInterest(ctx, "APNA100000000001")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.True(t, entry.Amount.Equal(amount(400)))
	assert.True(t, f.balance(t, "APNA100000000001").Equal(amount(10400)))

	_, err = f.svc.ApplyInterest(ctx, "APNA100000000002")
	assert.ErrorIs(t, err, ErrNotSavings)
}

func TestCloseAccount(t *testing.T) {
	f := newFixture(t,
		testutil.Account("APNA100000000001", "4826", 5000, testStart),
		testutil.Account("APNA100000000002", "7391", 0, testStart))
	ctx := context.Background()

	assert.ErrorIs(t, f.svc.CloseAccount(ctx, "APNA100000000001", "4826"), ErrNonZeroBalance)
	assert.ErrorIs(t, f.svc.CloseAccount(ctx, "APNA100000000002", "0000"), ErrInvalidPIN)

	require.NoError(t, f.svc.CloseAccount(ctx, "APNA100000000002", "7391"))
	_, err := f.dir.Find(ctx, "APNA100000000002")
	assert.ErrorIs(t, err, store.ErrAccountNotFound)

	require.Len(t, f.ledger.Entries, 1)
	assert.Equal(t, models.EntryAccountClosed, f.ledger.Entries[0].Type)
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.svc.OpenAccount(ctx, OpenAccountParams{
		HolderName:     " Asha Verma ",
		Phone:          "+919800000001",
		Email:          "asha@example.com",
		Type:           models.AccountTypeSavings,
		PIN:            "5917",
		InitialDeposit: amount(2000),
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(acct.Number, "APNA"))
	assert.Len(t, acct.Number, 16)
	assert.Equal(t, "Asha Verma", acct.HolderName)
	assert.Equal(t, models.StatusActive, acct.Status)
	assert.True(t, acct.Balance.Equal(amount(2000)))

	history, err := f.svc.History(ctx, acct.Number, 5)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Opening deposit", history[0].Description)
}

func TestOpenAccount_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := OpenAccountParams{
		HolderName:     "Asha Verma",
		Phone:          "+919800000001",
		Type:           models.AccountTypeCurrent,
		PIN:            "5917",
		InitialDeposit: amount(2000),
	}

	p := base
	p.HolderName = "  "
	_, err := f.svc.OpenAccount(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidHolder)

	p = base
	p.Type = "FIXED"
	_, err = f.svc.OpenAccount(ctx, p)
	assert.ErrorIs(t, err, ErrInvalidAccountType)

	p = base
	p.PIN = "1234"
	_, err = f.svc.OpenAccount(ctx, p)
	assert.ErrorIs(t, err, security.ErrPINWeak)

	p = base
	p.InitialDeposit = amount(100)
	_, err = f.svc.OpenAccount(ctx, p)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestLedgerFailureDoesNotUndoCommit(t *testing.T) {
	f := newFixture(t, testutil.Account("APNA100000000001", "4826", 5000, testStart))
	f.ledger.FailAppend = true

	_, err := f.svc.Deposit(context.Background(), "APNA100000000001", amount(1000))
	require.NoError(t, err)

	durable, _ := f.dir.Durable("APNA100000000001")
	assert.True(t, durable.Balance.Equal(amount(6000)))

	var found bool
	for _, line := range f.sink.Audit {
		found = found || strings.HasPrefix(line, "LEDGER_APPEND_FAILED DEPOSIT APNA100000000001 1000.00")
	}
	assert.True(t, found)
}
