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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType distinguishes savings from current accounts
type AccountType string

const (
	AccountTypeSavings AccountType = "SAVINGS"
	AccountTypeCurrent AccountType = "CURRENT"
)

func (t AccountType) Valid() bool {
	return t == AccountTypeSavings || t == AccountTypeCurrent
}

// AccountStatus is the lifecycle state of an account. LOCKED and UNDER_REVIEW
// are only left through external remediation.
type AccountStatus string

const (
	StatusActive      AccountStatus = "ACTIVE"
	StatusLocked      AccountStatus = "LOCKED"
	StatusUnderReview AccountStatus = "UNDER_REVIEW"
)

// Account is the durable record held by the account directory.
type Account struct {
	Number            string          `db:"number"`
	HolderName        string          `db:"holder_name"`
	PinDigest         string          `db:"pin_digest"`
	Phone             string          `db:"phone"`
	Email             string          `db:"email"`
	Type              AccountType     `db:"account_type"`
	Balance           decimal.Decimal `db:"balance"`
	Status            AccountStatus   `db:"status"`
	OpenedAt          time.Time       `db:"opened_at"`
	FailedAttempts    int             `db:"failed_attempts"`
	LastTransactionAt time.Time       `db:"last_transaction_at"`
	LastLoginAt       time.Time       `db:"last_login_at"`
	LastWithdrawalAt  time.Time       `db:"last_withdrawal_at"`
	DailyWithdrawn    decimal.Decimal `db:"daily_withdrawn"`
}

// LastActivity returns the most recent transaction time, falling back to the
// opening time for accounts that never transacted.
func (a *Account) LastActivity() time.Time {
	if a.LastTransactionAt.IsZero() {
		return a.OpenedAt
	}
	return a.LastTransactionAt
}

// Clone returns a detached copy of the account.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}
