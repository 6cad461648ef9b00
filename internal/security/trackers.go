package security

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// LoginAttemptTracker keeps per-account login timestamps.
type LoginAttemptTracker struct {
	mu       sync.Mutex
	clock    Clock
	attempts map[string][]time.Time
}

func NewLoginAttemptTracker(clock Clock) *LoginAttemptTracker {
	return &LoginAttemptTracker{clock: clock, attempts: make(map[string][]time.Time)}
}

func (t *LoginAttemptTracker) Record(account string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[account] = append(t.attempts[account], t.clock.Now())
}

// CountRecent counts attempts newer than now-window and drops the older ones.
func (t *LoginAttemptTracker) CountRecent(account string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-window)
	kept := t.attempts[account][:0]
	for _, ts := range t.attempts[account] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) == 0 {
		delete(t.attempts, account)
		return 0
	}
	t.attempts[account] = kept
	return len(kept)
}

type txRecord struct {
	amount decimal.Decimal
	at     time.Time
}

// TransactionPatternTracker keeps per-account (amount, timestamp) pairs.
type TransactionPatternTracker struct {
	mu      sync.Mutex
	clock   Clock
	records map[string][]txRecord
}

func NewTransactionPatternTracker(clock Clock) *TransactionPatternTracker {
	return &TransactionPatternTracker{clock: clock, records: make(map[string][]txRecord)}
}

func (t *TransactionPatternTracker) Record(account string, amount decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[account] = append(t.records[account], txRecord{amount: amount, at: t.clock.Now()})
}

// CountRecent counts transactions newer than now-window and drops the older ones.
func (t *TransactionPatternTracker) CountRecent(account string, window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-window)
	kept := t.records[account][:0]
	for _, r := range t.records[account] {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	if len(kept) == 0 {
		delete(t.records, account)
		return 0
	}
	t.records[account] = kept
	return len(kept)
}

// Prune drops attempts older than the window for every account and returns
// how many accounts were left empty and removed.
func (t *LoginAttemptTracker) Prune(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-window)
	removed := 0
	for account, stamps := range t.attempts {
		kept := stamps[:0]
		for _, ts := range stamps {
			if ts.After(cutoff) {
				kept = append(kept, ts)
			}
		}
		if len(kept) == 0 {
			delete(t.attempts, account)
			removed++
			continue
		}
		t.attempts[account] = kept
	}
	return removed
}

// Len reports how many accounts have retained attempts.
func (t *LoginAttemptTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.attempts)
}

// Prune drops transactions older than the window for every account and
// returns how many accounts were left empty and removed.
func (t *TransactionPatternTracker) Prune(window time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-window)
	removed := 0
	for account, records := range t.records {
		kept := records[:0]
		for _, r := range records {
			if r.at.After(cutoff) {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			delete(t.records, account)
			removed++
			continue
		}
		t.records[account] = kept
	}
	return removed
}

func (t *TransactionPatternTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}
