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
	"strings"

	"bank-terminal-go/internal/bank"
	"bank-terminal-go/internal/common"
	"bank-terminal-go/internal/config"
	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	nameFlag := flag.String("name", "", "Account holder name (required)")
	phoneFlag := flag.String("phone", "", "Registered phone number (required)")
	emailFlag := flag.String("email", "", "Email address (optional)")
	typeFlag := flag.String("type", "SAVINGS", "Account type: SAVINGS or CURRENT")
	pinFlag := flag.String("pin", "", "4-digit PIN (required)")
	depositFlag := flag.String("deposit", "", "Opening deposit amount (required)")
	flag.Parse()

	if *nameFlag == "" || *phoneFlag == "" || *pinFlag == "" || *depositFlag == "" {
		logger.Fatal("Missing required flags. Usage: go run cmd/openaccount/main.go --name=\"Meera Iyer\" --phone=+919812345678 --pin=5829 --deposit=1500")
	}

	deposit, err := decimal.NewFromString(*depositFlag)
	if err != nil {
		logger.Fatal("Invalid deposit amount", zap.String("deposit", *depositFlag), zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ctx = models.WithChannelContext(ctx, &models.ChannelContext{Channel: "cli"})
	acct, err := services.Bank.OpenAccount(ctx, bank.OpenAccountParams{
		HolderName:     *nameFlag,
		Phone:          *phoneFlag,
		Email:          *emailFlag,
		Type:           models.AccountType(strings.ToUpper(*typeFlag)),
		PIN:            *pinFlag,
		InitialDeposit: deposit,
	})
	if err != nil {
		logger.Fatal("Failed to open account", zap.Error(err))
	}

	common.PrintHeader("ACCOUNT OPENED", common.DefaultWidth)
	fmt.Printf("Account Number : %s\n", acct.Number)
	fmt.Printf("Holder         : %s\n", acct.HolderName)
	fmt.Printf("Type           : %s\n", acct.Type)
	fmt.Printf("Balance        : %s\n", common.FormatAmount(acct.Balance))
	common.PrintFooter("Keep the account number and PIN safe", common.DefaultWidth)
}
