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

package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// timeFormat sorts lexically in the same order as the instants it encodes.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Service) loadAccounts(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, queryListAccounts)
	if err != nil {
		return err
	}
	defer rows.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return err
		}
		s.accounts[acct.Number] = acct
	}
	return rows.Err()
}

func (s *Service) Find(_ context.Context, number string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[number]
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, number)
	}
	return acct, nil
}

func (s *Service) List(_ context.Context) ([]*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Account, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Upsert writes the account row and makes it the cached record.
func (s *Service) Upsert(ctx context.Context, acct *models.Account) error {
	if _, err := s.db.ExecContext(ctx, queryUpsertAccount, accountArgs(acct)...); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}

	s.mu.Lock()
	s.accounts[acct.Number] = acct
	s.mu.Unlock()
	return nil
}

// Persist writes the given accounts in a single database transaction.
func (s *Service) Persist(ctx context.Context, accounts ...*models.Account) error {
	if len(accounts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, queryUpsertAccount)
	if err != nil {
		return fmt.Errorf("failed to prepare account update: %w", err)
	}
	defer stmt.Close()

	for _, acct := range accounts {
		if _, err := stmt.ExecContext(ctx, accountArgs(acct)...); err != nil {
			return fmt.Errorf("failed to write account %s: %w", acct.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) PersistAll(ctx context.Context) error {
	accounts, err := s.List(ctx)
	if err != nil {
		return err
	}
	return s.Persist(ctx, accounts...)
}

func (s *Service) Remove(ctx context.Context, number string) error {
	result, err := s.db.ExecContext(ctx, queryDeleteAccount, number)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}

	s.mu.Lock()
	delete(s.accounts, number)
	s.mu.Unlock()

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", store.ErrAccountNotFound, number)
	}
	zap.L().Info("Account removed", zap.String("number", number))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var acct models.Account
	var balance, dailyWithdrawn string
	var openedAt, lastTxAt, lastLoginAt, lastWithdraw string
	var err error
	if err := row.Scan(&acct.Number, &acct.HolderName, &acct.PinDigest, &acct.Phone, &acct.Email,
		&acct.Type, &balance, &acct.Status, &openedAt, &acct.FailedAttempts,
		&lastTxAt, &lastLoginAt, &lastWithdraw, &dailyWithdrawn); err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	if acct.Balance, err = decimal.NewFromString(balance); err != nil {
		return nil, fmt.Errorf("failed to parse balance '%s' for %s: %w", balance, acct.Number, err)
	}
	if acct.DailyWithdrawn, err = decimal.NewFromString(dailyWithdrawn); err != nil {
		return nil, fmt.Errorf("failed to parse daily_withdrawn '%s' for %s: %w", dailyWithdrawn, acct.Number, err)
	}
	for _, f := range []struct {
		raw string
		dst *time.Time
	}{
		{openedAt, &acct.OpenedAt},
		{lastTxAt, &acct.LastTransactionAt},
		{lastLoginAt, &acct.LastLoginAt},
		{lastWithdraw, &acct.LastWithdrawalAt},
	} {
		if *f.dst, err = parseTime(f.raw); err != nil {
			return nil, fmt.Errorf("failed to parse timestamp for %s: %w", acct.Number, err)
		}
	}
	return &acct, nil
}

func accountArgs(acct *models.Account) []any {
	return []any{
		acct.Number, acct.HolderName, acct.PinDigest, acct.Phone, acct.Email,
		string(acct.Type), acct.Balance.String(), string(acct.Status),
		formatTime(acct.OpenedAt), acct.FailedAttempts,
		formatTime(acct.LastTransactionAt), formatTime(acct.LastLoginAt),
		formatTime(acct.LastWithdrawalAt), acct.DailyWithdrawn.String(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeFormat, raw)
}
