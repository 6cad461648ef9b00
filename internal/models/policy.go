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
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SecurityPolicy holds every tunable threshold used by authentication,
// abuse detection and the account operations.
type SecurityPolicy struct {
	// Credentials and lockout
	MaxFailedAttempts int
	InactivityLock    time.Duration

	// Sessions
	SessionTimeout     time.Duration
	MaxSessionAttempts int
	TokenLength        int

	// Step-up challenges
	ChallengeTTL       time.Duration
	ChallengeDigits    int
	HighValueThreshold decimal.Decimal

	// Abuse heuristics
	LoginWindow              time.Duration
	MaxLoginsPerWindow       int
	VelocityWindow           time.Duration
	MaxTransactionsPerWindow int
	BalanceFraction          decimal.Decimal

	// Amount limits
	MinDeposit              decimal.Decimal
	MaxDeposit              decimal.Decimal
	MinWithdrawal           decimal.Decimal
	DailyWithdrawalLimit    decimal.Decimal
	MaxTransactionAmount    decimal.Decimal
	SavingsTransactionLimit decimal.Decimal
	InterestRate            decimal.Decimal
}

// DefaultSecurityPolicy returns the terminal's built-in thresholds
func DefaultSecurityPolicy() SecurityPolicy {
	return SecurityPolicy{
		MaxFailedAttempts: 3,
		InactivityLock:    180 * 24 * time.Hour,

		SessionTimeout:     15 * time.Minute,
		MaxSessionAttempts: 5,
		TokenLength:        32,

		ChallengeTTL:       5 * time.Minute,
		ChallengeDigits:    6,
		HighValueThreshold: decimal.NewFromInt(50000),

		LoginWindow:              time.Hour,
		MaxLoginsPerWindow:       10,
		VelocityWindow:           5 * time.Minute,
		MaxTransactionsPerWindow: 5,
		BalanceFraction:          decimal.RequireFromString("0.8"),

		MinDeposit:              decimal.NewFromInt(500),
		MaxDeposit:              decimal.NewFromInt(100000),
		MinWithdrawal:           decimal.NewFromInt(500),
		DailyWithdrawalLimit:    decimal.NewFromInt(50000),
		MaxTransactionAmount:    decimal.NewFromInt(100000),
		SavingsTransactionLimit: decimal.NewFromInt(50000),
		InterestRate:            decimal.RequireFromString("0.04"),
	}
}

// Validate rejects policies that would disable a safeguard
func (p SecurityPolicy) Validate() error {
	if p.MaxFailedAttempts <= 0 {
		return fmt.Errorf("max failed attempts must be positive, got %d", p.MaxFailedAttempts)
	}
	if p.InactivityLock <= 0 {
		return fmt.Errorf("inactivity lock must be positive, got %v", p.InactivityLock)
	}
	if p.SessionTimeout <= 0 {
		return fmt.Errorf("session timeout must be positive, got %v", p.SessionTimeout)
	}
	if p.MaxSessionAttempts <= 0 {
		return fmt.Errorf("max session attempts must be positive, got %d", p.MaxSessionAttempts)
	}
	if p.TokenLength < 32 {
		return fmt.Errorf("token length must be at least 32, got %d", p.TokenLength)
	}
	if p.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge ttl must be positive, got %v", p.ChallengeTTL)
	}
	if p.ChallengeDigits != 6 && p.ChallengeDigits != 8 {
		return fmt.Errorf("challenge digits must be 6 or 8, got %d", p.ChallengeDigits)
	}
	if p.LoginWindow <= 0 || p.VelocityWindow <= 0 {
		return fmt.Errorf("detection windows must be positive")
	}
	if p.MaxLoginsPerWindow <= 0 || p.MaxTransactionsPerWindow <= 0 {
		return fmt.Errorf("detection limits must be positive")
	}
	if !p.BalanceFraction.IsPositive() || p.BalanceFraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("balance fraction must be in (0, 1], got %s", p.BalanceFraction)
	}

	amounts := map[string]decimal.Decimal{
		"high value threshold":      p.HighValueThreshold,
		"min deposit":               p.MinDeposit,
		"max deposit":               p.MaxDeposit,
		"min withdrawal":            p.MinWithdrawal,
		"daily withdrawal limit":    p.DailyWithdrawalLimit,
		"max transaction amount":    p.MaxTransactionAmount,
		"savings transaction limit": p.SavingsTransactionLimit,
	}
	for name, amount := range amounts {
		if !amount.IsPositive() {
			return fmt.Errorf("%s must be positive, got %s", name, amount)
		}
	}
	if p.MinDeposit.GreaterThan(p.MaxDeposit) {
		return fmt.Errorf("min deposit %s exceeds max deposit %s", p.MinDeposit, p.MaxDeposit)
	}
	if p.InterestRate.IsNegative() {
		return fmt.Errorf("interest rate cannot be negative, got %s", p.InterestRate)
	}
	return nil
}
