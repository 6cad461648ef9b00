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

package main

import (
	"context"
	"flag"
	"fmt"

	"bank-terminal-go/internal/common"
	"bank-terminal-go/internal/config"
	"bank-terminal-go/internal/formance"
	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type balanceStats struct {
	totalAccounts int
	mismatches    int
	total         decimal.Decimal
}

func printAccount(acct *models.Account, isLast bool) {
	fmt.Printf("%s %s  %-24s %-8s %-13s %16s\n",
		common.BoxPrefix(isLast),
		acct.Number,
		acct.HolderName,
		acct.Type,
		acct.Status,
		common.FormatAmount(acct.Balance))
}

// reconcile compares the stored balance with the ledger's view of it.
func reconcile(ctx context.Context, fs *formance.Service, acct *models.Account, logger *zap.Logger) bool {
	ledgerBalance, err := fs.Balance(ctx, acct.Number)
	if err != nil {
		logger.Error("Failed to read ledger balance",
			zap.String("account", acct.Number),
			zap.Error(err))
		return false
	}
	if ledgerBalance.Equal(acct.Balance) {
		return true
	}
	fmt.Printf("   ! ledger balance %s differs from stored %s\n",
		common.FormatAmount(ledgerBalance), common.FormatAmount(acct.Balance))
	return false
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	accountFlag := flag.String("account", "", "Filter by a single account number (optional)")
	reconcileFlag := flag.Bool("reconcile", false, "Compare stored balances with the Formance ledger")
	flag.Parse()

	logger.Info("Starting balance query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Connecting to database", zap.String("path", cfg.Database.Path))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	var fs *formance.Service
	if *reconcileFlag {
		fs, err = formance.NewService(ctx, cfg.Ledger.Formance)
		if err != nil {
			logger.Fatal("Failed to connect to Formance", zap.Error(err))
		}
		defer fs.Close()
	}

	accounts, err := dbService.List(ctx)
	if err != nil {
		logger.Fatal("Failed to list accounts", zap.Error(err))
	}
	if *accountFlag != "" {
		acct, err := dbService.Find(ctx, *accountFlag)
		if err != nil {
			logger.Fatal("Failed to find account", zap.String("account", *accountFlag), zap.Error(err))
		}
		accounts = []*models.Account{acct}
	}

	common.PrintHeader("ACCOUNT BALANCE REPORT", common.WideWidth)

	stats := balanceStats{}
	for i, acct := range accounts {
		stats.totalAccounts++
		stats.total = stats.total.Add(acct.Balance)
		printAccount(acct, i == len(accounts)-1)
		if fs != nil && !reconcile(ctx, fs, acct, logger) {
			stats.mismatches++
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d accounts holding %s", stats.totalAccounts, common.FormatAmount(stats.total))
	if fs != nil {
		summary += fmt.Sprintf(" (%d not reconciled)", stats.mismatches)
	}
	common.PrintFooter(summary, common.WideWidth)

	logger.Info("Balance query completed",
		zap.Int("accounts", stats.totalAccounts),
		zap.Int("mismatches", stats.mismatches))
}
