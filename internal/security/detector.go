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

package security

import (
	"context"
	"fmt"

	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
)

// Signal names the heuristic a transaction tripped
type Signal int

const (
	SignalNone Signal = iota
	SignalVelocity
	SignalLargeAmount
	SignalBalanceFraction
)

func (s Signal) String() string {
	switch s {
	case SignalVelocity:
		return "velocity"
	case SignalLargeAmount:
		return "large_amount"
	case SignalBalanceFraction:
		return "balance_fraction"
	default:
		return "none"
	}
}

// Detector applies the abuse heuristics. It only reports; callers decide
// whether to flag, deny or escalate.
type Detector struct {
	policy models.SecurityPolicy
	logins *LoginAttemptTracker
	txns   *TransactionPatternTracker
	events EventSink
}

func NewDetector(policy models.SecurityPolicy, clock Clock, events EventSink) *Detector {
	return &Detector{
		policy: policy,
		logins: NewLoginAttemptTracker(clock),
		txns:   NewTransactionPatternTracker(clock),
		events: events,
	}
}

func (d *Detector) RecordLogin(account string) {
	d.logins.Record(account)
}

// SuspiciousLogin reports more than MaxLoginsPerWindow recorded attempts in
// the login window. It does not log; the gate owns that line.
func (d *Detector) SuspiciousLogin(account string) bool {
	return d.logins.CountRecent(account, d.policy.LoginWindow) > d.policy.MaxLoginsPerWindow
}

func (d *Detector) RecordTransaction(account string, amount decimal.Decimal) {
	d.txns.Record(account, amount)
}

// CleanupExpired prunes both trackers by their windows, including accounts
// that are never read again, and returns how many accounts were dropped.
func (d *Detector) CleanupExpired(_ context.Context) (int, error) {
	return d.logins.Prune(d.policy.LoginWindow) + d.txns.Prune(d.policy.VelocityWindow), nil
}

// Tracked reports how many accounts the login and transaction trackers retain.
func (d *Detector) Tracked() (logins, transactions int) {
	return d.logins.Len(), d.txns.Len()
}

// SuspiciousTransaction checks a proposed debit against the velocity, size
// and balance-fraction rules, most severe first, and logs the first hit.
func (d *Detector) SuspiciousTransaction(account string, amount, balance decimal.Decimal) Signal {
	if n := d.txns.CountRecent(account, d.policy.VelocityWindow); n > d.policy.MaxTransactionsPerWindow {
		d.events.Event(LevelHigh, account,
			fmt.Sprintf("Rapid transactions detected: %d in %v", n, d.policy.VelocityWindow))
		return SignalVelocity
	}

	if amount.GreaterThan(d.policy.HighValueThreshold) {
		d.events.Event(LevelHigh, account,
			fmt.Sprintf("Large transaction attempted: %s", amount.StringFixed(2)))
		return SignalLargeAmount
	}

	if balance.IsPositive() && amount.GreaterThan(balance.Mul(d.policy.BalanceFraction)) {
		d.events.Event(LevelMedium, account,
			fmt.Sprintf("Transaction of %s exceeds %s of balance", amount.StringFixed(2),
				d.policy.BalanceFraction.Shift(2).String()+"%"))
		return SignalBalanceFraction
	}

	return SignalNone
}
