/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/guard"
	"bank-terminal-go/internal/keylock"
	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StepUp lets the service demand a verification challenge for risky debits.
type StepUp interface {
	StepUpVerified(ctx context.Context, number string) (bool, error)
	EscalateStepUp(ctx context.Context, acct *models.Account) (string, error)
}

// ServiceParams wires the service's collaborators.
type ServiceParams struct {
	Directory store.AccountDirectory
	Ledger    store.TransactionLedger
	Locks     *keylock.Locker
	Detector  *security.Detector
	StepUp    StepUp
	Events    security.EventSink
	Audit     security.AuditSink
	Clock     security.Clock
	Policy    models.SecurityPolicy
}

// Service runs the balance-affecting operations. Every mutation happens under
// the account lock inside a guard that is committed only after the directory
// has persisted the change. Ledger and audit writes follow the commit.
type Service struct {
	dir      store.AccountDirectory
	ledger   store.TransactionLedger
	locks    *keylock.Locker
	detector *security.Detector
	stepUp   StepUp
	events   security.EventSink
	audit    security.AuditSink
	clock    security.Clock
	policy   models.SecurityPolicy
}

func NewService(p ServiceParams) *Service {
	return &Service{
		dir:      p.Directory,
		ledger:   p.Ledger,
		locks:    p.Locks,
		detector: p.Detector,
		stepUp:   p.StepUp,
		events:   p.Events,
		audit:    p.Audit,
		clock:    p.Clock,
		policy:   p.Policy,
	}
}

// apply snapshots the accounts, runs fn, persists and commits. Any failure
// restores the in-memory records.
func (s *Service) apply(ctx context.Context, name string, accounts []*models.Account, fn func() error) error {
	gd := guard.New(name)
	defer gd.Release()
	for _, a := range accounts {
		guard.Snapshot(gd, a)
	}

	if err := fn(); err != nil {
		return err
	}
	if err := s.dir.Persist(ctx, accounts...); err != nil {
		return fmt.Errorf("unable to persist %s: %w", name, err)
	}
	gd.Commit()
	return nil
}

func (s *Service) activeAccount(ctx context.Context, number string) (*models.Account, error) {
	acct, err := s.dir.Find(ctx, number)
	if err != nil {
		return nil, err
	}
	if acct.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: %s", ErrAccountInactive, acct.Status)
	}
	return acct, nil
}

func (s *Service) validateAmount(acct *models.Account, amount decimal.Decimal) error {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(s.policy.MaxTransactionAmount) {
		return fmt.Errorf("%w: limit %s", ErrAboveMaximum, s.policy.MaxTransactionAmount.StringFixed(2))
	}
	if acct.Type == models.AccountTypeSavings && amount.GreaterThan(s.policy.SavingsTransactionLimit) {
		return ErrSavingsLimit
	}
	return nil
}

// screen runs the transaction heuristics on a proposed debit. Velocity
// flags the account; a large or balance-draining amount needs step-up.
func (s *Service) screen(ctx context.Context, acct *models.Account, amount decimal.Decimal) error {
	switch s.detector.SuspiciousTransaction(acct.Number, amount, acct.Balance) {
	case security.SignalVelocity:
		err := s.apply(ctx, "flag-for-review", []*models.Account{acct}, func() error {
			acct.Status = models.StatusUnderReview
			return nil
		})
		if err != nil {
			return err
		}
		s.audit.Record(fmt.Sprintf("Account %s flagged for review: rapid transactions", acct.Number))
		return auth.ErrSuspiciousActivity

	case security.SignalLargeAmount, security.SignalBalanceFraction:
		verified, err := s.stepUp.StepUpVerified(ctx, acct.Number)
		if err != nil {
			return err
		}
		if verified {
			return nil
		}
		handle, err := s.stepUp.EscalateStepUp(ctx, acct)
		if err != nil {
			return err
		}
		return &auth.StepUpError{Handle: handle}
	}
	return nil
}

func (s *Service) entry(ctx context.Context, acct *models.Account, t models.EntryType, amount decimal.Decimal, counterparty, description string) models.LedgerEntry {
	e := models.LedgerEntry{
		Id:            uuid.New().String(),
		AccountNumber: acct.Number,
		Type:          t,
		Amount:        amount,
		BalanceAfter:  acct.Balance,
		Counterparty:  counterparty,
		Description:   description,
		CreatedAt:     s.clock.Now(),
	}
	if cc := models.GetChannelContext(ctx); cc != nil {
		e.Channel = cc.Channel
	}
	return e
}

// record appends committed entries to the ledger and audit trail. A ledger
// failure does not undo the committed operation; it is logged and audited.
func (s *Service) record(ctx context.Context, entries ...models.LedgerEntry) {
	for _, e := range entries {
		if err := s.ledger.Append(ctx, e); err != nil {
			zap.L().Error("Ledger append failed",
				zap.String("entry_id", e.Id),
				zap.String("account", e.AccountNumber),
				zap.String("type", string(e.Type)),
				zap.Error(err))
			s.audit.Record(fmt.Sprintf("LEDGER_APPEND_FAILED %s %s %s entry=%s",
				e.Type, e.AccountNumber, e.Amount.StringFixed(2), e.Id))
		}

		line := fmt.Sprintf("%s %s amount=%s balance=%s", e.Type, e.AccountNumber,
			e.Amount.StringFixed(2), e.BalanceAfter.StringFixed(2))
		if e.Counterparty != "" {
			line += " counterparty=" + e.Counterparty
		}
		if e.Channel != "" {
			line += " channel=" + e.Channel
		}
		s.audit.Record(line)
	}
}

// Deposit credits cash to the account.
func (s *Service) Deposit(ctx context.Context, number string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(acct, amount); err != nil {
		return nil, err
	}
	if amount.LessThan(s.policy.MinDeposit) {
		return nil, fmt.Errorf("%w: minimum deposit is %s", ErrBelowMinimum, s.policy.MinDeposit.StringFixed(2))
	}
	if amount.GreaterThan(s.policy.MaxDeposit) {
		return nil, fmt.Errorf("%w: maximum deposit is %s", ErrAboveMaximum, s.policy.MaxDeposit.StringFixed(2))
	}

	now := s.clock.Now()
	err = s.apply(ctx, "deposit", []*models.Account{acct}, func() error {
		acct.Balance = acct.Balance.Add(amount)
		acct.LastTransactionAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.entry(ctx, acct, models.EntryDeposit, amount, "", "Cash deposit")
	s.detector.RecordTransaction(number, amount)
	s.record(ctx, entry)
	return &entry, nil
}

// Withdraw debits cash, enforcing the minimum and the per-day limit.
func (s *Service) Withdraw(ctx context.Context, number string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(acct, amount); err != nil {
		return nil, err
	}
	if amount.LessThan(s.policy.MinWithdrawal) {
		return nil, fmt.Errorf("%w: minimum withdrawal is %s", ErrBelowMinimum, s.policy.MinWithdrawal.StringFixed(2))
	}
	if amount.GreaterThan(acct.Balance) {
		return nil, ErrInsufficientFunds
	}

	now := s.clock.Now()
	withdrawnToday := acct.DailyWithdrawn
	if !sameDay(acct.LastWithdrawalAt, now) {
		withdrawnToday = decimal.Zero
	}
	if withdrawnToday.Add(amount).GreaterThan(s.policy.DailyWithdrawalLimit) {
		remaining := s.policy.DailyWithdrawalLimit.Sub(withdrawnToday)
		return nil, fmt.Errorf("%w: %s remaining today", ErrDailyLimit, remaining.StringFixed(2))
	}

	if err := s.screen(ctx, acct, amount); err != nil {
		return nil, err
	}

	err = s.apply(ctx, "withdraw", []*models.Account{acct}, func() error {
		acct.Balance = acct.Balance.Sub(amount)
		acct.DailyWithdrawn = withdrawnToday.Add(amount)
		acct.LastWithdrawalAt = now
		acct.LastTransactionAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.entry(ctx, acct, models.EntryWithdrawal, amount, "", "Cash withdrawal")
	s.detector.RecordTransaction(number, amount)
	s.record(ctx, entry)
	return &entry, nil
}

// Transfer moves funds between two accounts. Both accounts are locked in
// lexical order and persisted together.
func (s *Service) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if from == to {
		return nil, ErrSelfTransfer
	}

	unlock := s.locks.LockPair(from, to)
	defer unlock()

	sender, err := s.activeAccount(ctx, from)
	if err != nil {
		return nil, err
	}
	recipient, err := s.dir.Find(ctx, to)
	if errors.Is(err, store.ErrAccountNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(sender, amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(sender.Balance) {
		return nil, ErrInsufficientFunds
	}
	if err := s.screen(ctx, sender, amount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.apply(ctx, "transfer", []*models.Account{sender, recipient}, func() error {
		sender.Balance = sender.Balance.Sub(amount)
		sender.LastTransactionAt = now
		recipient.Balance = recipient.Balance.Add(amount)
		recipient.LastTransactionAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := s.entry(ctx, sender, models.EntryTransferOut, amount, to, "Transfer to "+to)
	in := s.entry(ctx, recipient, models.EntryTransferIn, amount, from, "Transfer from "+from)
	s.detector.RecordTransaction(from, amount)
	s.record(ctx, out, in)
	return &out, nil
}

// BillType is a supported biller category
type BillType string

const (
	BillElectricity BillType = "Electricity"
	BillWater       BillType = "Water"
	BillGas         BillType = "Gas"
	BillInternet    BillType = "Internet"
	BillPhone       BillType = "Phone"
	BillOther       BillType = "Other"
)

func (b BillType) Valid() bool {
	switch b {
	case BillElectricity, BillWater, BillGas, BillInternet, BillPhone, BillOther:
		return true
	}
	return false
}

// PayBill debits a utility payment with the biller's reference.
func (s *Service) PayBill(ctx context.Context, number string, billType BillType, reference string, amount decimal.Decimal) (*models.LedgerEntry, error) {
	if !billType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBillType, billType)
	}
	if reference == "" {
		return nil, ErrMissingReference
	}

	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := s.validateAmount(acct, amount); err != nil {
		return nil, err
	}
	if amount.GreaterThan(acct.Balance) {
		return nil, ErrInsufficientFunds
	}
	if err := s.screen(ctx, acct, amount); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	err = s.apply(ctx, "pay-bill", []*models.Account{acct}, func() error {
		acct.Balance = acct.Balance.Sub(amount)
		acct.LastTransactionAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.entry(ctx, acct, models.EntryBillPayment, amount, string(billType),
		fmt.Sprintf("%s bill, ref %s", billType, reference))
	s.detector.RecordTransaction(number, amount)
	s.record(ctx, entry)
	return &entry, nil
}

// ChangePIN replaces the PIN after checking the current one and the
// strength of the new one.
func (s *Service) ChangePIN(ctx context.Context, number, current, next string) error {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return err
	}
	if !security.Verify(acct.PinDigest, current) {
		s.events.Event(security.LevelMedium, number, "PIN change rejected: current PIN incorrect")
		return ErrInvalidPIN
	}
	if next == current {
		return ErrSamePIN
	}
	if err := security.ValidatePIN(next); err != nil {
		return err
	}

	err = s.apply(ctx, "change-pin", []*models.Account{acct}, func() error {
		acct.PinDigest = security.Digest(next)
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(fmt.Sprintf("PIN changed for account %s", number))
	s.events.Event(security.LevelLow, number, "PIN changed")
	return nil
}

// ApplyInterest posts interest on a savings balance. It returns nil when the
// computed interest rounds to zero.
func (s *Service) ApplyInterest(ctx context.Context, number string) (*models.LedgerEntry, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return nil, err
	}
	if acct.Type != models.AccountTypeSavings {
		return nil, ErrNotSavings
	}

	interest := acct.Balance.Mul(s.policy.InterestRate).Round(2)
	if !interest.IsPositive() {
		return nil, nil
	}

	now := s.clock.Now()
	err = s.apply(ctx, "apply-interest", []*models.Account{acct}, func() error {
		acct.Balance = acct.Balance.Add(interest)
		acct.LastTransactionAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	entry := s.entry(ctx, acct, models.EntryInterest, interest, "",
		fmt.Sprintf("Interest at %s%%", s.policy.InterestRate.Shift(2).String()))
	s.record(ctx, entry)
	return &entry, nil
}

// CloseAccount removes a zero-balance account after confirming its PIN.
func (s *Service) CloseAccount(ctx context.Context, number, pin string) error {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.activeAccount(ctx, number)
	if err != nil {
		return err
	}
	if !security.Verify(acct.PinDigest, pin) {
		s.events.Event(security.LevelMedium, number, "Account closure rejected: PIN incorrect")
		return ErrInvalidPIN
	}
	if !acct.Balance.IsZero() {
		return fmt.Errorf("%w: balance is %s", ErrNonZeroBalance, acct.Balance.StringFixed(2))
	}

	if err := s.dir.Remove(ctx, number); err != nil {
		return fmt.Errorf("unable to remove account: %w", err)
	}

	entry := s.entry(ctx, acct, models.EntryAccountClosed, decimal.Zero, "", "Account closed by holder")
	s.record(ctx, entry)
	s.events.Event(security.LevelMedium, number, "Account closed")
	return nil
}

// Account returns a detached copy of the account record.
func (s *Service) Account(ctx context.Context, number string) (*models.Account, error) {
	unlock := s.locks.Lock(number)
	defer unlock()

	acct, err := s.dir.Find(ctx, number)
	if err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}

// History returns up to limit ledger entries, newest first.
func (s *Service) History(ctx context.Context, number string, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ledger.History(ctx, number, limit)
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
