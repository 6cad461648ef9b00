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
	"database/sql"
	"fmt"
	"sync"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time checks: *Service backs both the directory and the ledger.
var (
	_ store.AccountDirectory  = (*Service)(nil)
	_ store.TransactionLedger = (*Service)(nil)
)

// Service is the SQLite account directory and transaction ledger. Account
// rows are loaded into an in-memory cache at startup; Find hands out the
// cached record and Persist writes it back.
type Service struct {
	db *sql.DB

	mu       sync.RWMutex
	accounts map[string]*models.Account
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, accounts: make(map[string]*models.Account)}
	if err := service.initSchema(ctx, cfg.CreateDemoAccounts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if err := service.loadAccounts(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to load accounts: %w", err)
	}

	zap.L().Info("Database service initialized successfully", zap.Int("accounts", len(service.accounts)))
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context, createDemoAccounts bool) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if !createDemoAccounts {
		zap.L().Info("Skipping demo account creation (CREATE_DEMO_ACCOUNTS=false)")
		return nil
	}

	now := time.Now().UTC()
	for _, acct := range demoAccounts(now) {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE number = ?`, acct.Number).Scan(&exists)
		if err == nil {
			continue
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to check demo account: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, queryUpsertAccount, accountArgs(acct)...); err != nil {
			zap.L().Error("Failed to insert demo account", zap.String("number", acct.Number), zap.Error(err))
			continue
		}
		zap.L().Info("Demo account created", zap.String("number", acct.Number), zap.String("holder", acct.HolderName))
	}
	return nil
}

func demoAccounts(now time.Time) []*models.Account {
	demo := []struct {
		number  string
		name    string
		pin     string
		phone   string
		kind    models.AccountType
		balance int64
	}{
		{"APNA100000000001", "Rahul Sharma", "4826", "+919812345601", models.AccountTypeSavings, 25000},
		{"APNA100000000002", "Priya Nair", "7391", "+919812345602", models.AccountTypeCurrent, 60000},
		{"APNA100000000003", "Arjun Mehta", "6157", "+919812345603", models.AccountTypeSavings, 5000},
	}

	out := make([]*models.Account, 0, len(demo))
	for _, d := range demo {
		out = append(out, &models.Account{
			Number:            d.number,
			HolderName:        d.name,
			PinDigest:         security.Digest(d.pin),
			Phone:             d.phone,
			Type:              d.kind,
			Balance:           decimal.NewFromInt(d.balance),
			Status:            models.StatusActive,
			OpenedAt:          now,
			LastTransactionAt: now,
			DailyWithdrawn:    decimal.Zero,
		})
	}
	return out
}
