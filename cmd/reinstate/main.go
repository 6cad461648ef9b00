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

	"bank-terminal-go/internal/common"
	"bank-terminal-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	accountFlag := flag.String("account", "", "Account number to reinstate (required)")
	officerFlag := flag.String("officer", "", "Branch officer authorising the reinstatement (required)")
	flag.Parse()

	if *accountFlag == "" || *officerFlag == "" {
		logger.Fatal("Missing required flags. Usage: go run cmd/reinstate/main.go --account=APNA100000000001 --officer=\"K. Rao\"")
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

	if err := services.Gate.Reinstate(ctx, *accountFlag, *officerFlag); err != nil {
		logger.Fatal("Failed to reinstate account", zap.String("account", *accountFlag), zap.Error(err))
	}

	logger.Info("Account reinstated",
		zap.String("account", *accountFlag),
		zap.String("officer", *officerFlag))
}
