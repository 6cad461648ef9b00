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

package api

import (
	"context"
	"fmt"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/bank"
	"bank-terminal-go/internal/store"
)

// TerminalService exposes the gate and the bank operations over HTTP.
type TerminalService struct {
	gate *auth.Gate
	bank *bank.Service
	dir  store.AccountDirectory
}

func NewTerminalService(gate *auth.Gate, bankService *bank.Service, dir store.AccountDirectory) *TerminalService {
	return &TerminalService{
		gate: gate,
		bank: bankService,
		dir:  dir,
	}
}

func (s *TerminalService) HealthCheck(ctx context.Context) error {
	_, err := s.dir.List(ctx)
	if err != nil {
		return fmt.Errorf("account directory health check failed: %w", err)
	}
	return nil
}
