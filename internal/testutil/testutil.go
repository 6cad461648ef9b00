// Package testutil holds in-memory collaborators shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	"github.com/shopspring/decimal"
)

var ErrPersistFailed = errors.New("persist failed")

// Directory is an in-memory store.AccountDirectory. Setting FailPersist
// makes every write fail without touching stored state.
type Directory struct {
	mu          sync.Mutex
	accounts    map[string]*models.Account
	durable     map[string]models.Account
	FailPersist bool
	Persists    int
}

var _ store.AccountDirectory = (*Directory)(nil)

func NewDirectory(accounts ...*models.Account) *Directory {
	d := &Directory{
		accounts: make(map[string]*models.Account),
		durable:  make(map[string]models.Account),
	}
	for _, a := range accounts {
		d.accounts[a.Number] = a
		d.durable[a.Number] = *a
	}
	return d
}

func (d *Directory) Find(_ context.Context, number string) (*models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.accounts[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, number)
	}
	return a, nil
}

func (d *Directory) List(_ context.Context) ([]*models.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*models.Account, 0, len(d.accounts))
	for _, a := range d.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (d *Directory) Upsert(_ context.Context, a *models.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPersist {
		return ErrPersistFailed
	}
	d.accounts[a.Number] = a
	d.durable[a.Number] = *a
	return nil
}

func (d *Directory) Persist(_ context.Context, accounts ...*models.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPersist {
		return ErrPersistFailed
	}
	for _, a := range accounts {
		d.durable[a.Number] = *a
	}
	d.Persists++
	return nil
}

func (d *Directory) PersistAll(ctx context.Context) error {
	accounts, _ := d.List(ctx)
	return d.Persist(ctx, accounts...)
}

func (d *Directory) Remove(_ context.Context, number string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.FailPersist {
		return ErrPersistFailed
	}
	if _, ok := d.accounts[number]; !ok {
		return fmt.Errorf("%w: %s", store.ErrAccountNotFound, number)
	}
	delete(d.accounts, number)
	delete(d.durable, number)
	return nil
}

// Durable returns the last successfully persisted copy.
func (d *Directory) Durable(number string) (models.Account, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.durable[number]
	return a, ok
}

// Ledger is an in-memory store.TransactionLedger.
type Ledger struct {
	mu         sync.Mutex
	Entries    []models.LedgerEntry
	FailAppend bool
}

var _ store.TransactionLedger = (*Ledger)(nil)

func (l *Ledger) Append(_ context.Context, e models.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.FailAppend {
		return errors.New("ledger unavailable")
	}
	l.Entries = append(l.Entries, e)
	return nil
}

func (l *Ledger) History(_ context.Context, number string, limit int) ([]models.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.LedgerEntry
	for i := len(l.Entries) - 1; i >= 0 && len(out) < limit; i-- {
		if l.Entries[i].AccountNumber == number {
			out = append(out, l.Entries[i])
		}
	}
	return out, nil
}

// Event is one recorded security event.
type Event struct {
	Level   security.Level
	Account string
	Text    string
}

// Sink records security events and audit lines.
type Sink struct {
	mu     sync.Mutex
	Events []Event
	Audit  []string
}

func (s *Sink) Event(level security.Level, account, event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, Event{Level: level, Account: account, Text: event})
}

func (s *Sink) Record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Audit = append(s.Audit, event)
}

// Reset forgets everything recorded so far.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = nil
	s.Audit = nil
}

// Dispatcher records challenge deliveries.
type Dispatcher struct {
	mu         sync.Mutex
	Deliveries []models.ChallengeDelivery
}

func (d *Dispatcher) Dispatch(_ context.Context, delivery models.ChallengeDelivery) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Deliveries = append(d.Deliveries, delivery)
	return nil
}

// LastCode returns the most recently delivered code.
func (d *Dispatcher) LastCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.Deliveries) == 0 {
		return ""
	}
	return d.Deliveries[len(d.Deliveries)-1].Code
}

// Account builds an active account with the given PIN and balance.
func Account(number, pin string, balance int64, opened time.Time) *models.Account {
	return &models.Account{
		Number:            number,
		HolderName:        "Test Holder " + number[len(number)-1:],
		PinDigest:         security.Digest(pin),
		Phone:             "+91980000000" + number[len(number)-1:],
		Email:             "holder" + number[len(number)-1:] + "@example.com",
		Type:              models.AccountTypeCurrent,
		Balance:           decimal.NewFromInt(balance),
		Status:            models.StatusActive,
		OpenedAt:          opened,
		LastTransactionAt: opened,
		DailyWithdrawn:    decimal.Zero,
	}
}
