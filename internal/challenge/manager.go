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

package challenge

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"errors"
	"fmt"
	"sync"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
	"go.uber.org/zap"
)

var (
	ErrNoPending        = errors.New("no pending challenge")
	ErrChallengeExpired = errors.New("challenge expired")
	ErrCodeMismatch     = errors.New("challenge code mismatch")
)

// Dispatcher delivers a code to the account holder. Delivery failures never
// fail the issue; they are logged.
type Dispatcher interface {
	Dispatch(ctx context.Context, delivery models.ChallengeDelivery) error
}

// Manager issues and verifies one-time step-up codes, at most one per account.
type Manager struct {
	mu         sync.Mutex
	pending    map[string]models.PendingChallenge
	clock      security.Clock
	events     security.EventSink
	dispatcher Dispatcher
	ttl        time.Duration
	digits     otp.Digits
}

func NewManager(dispatcher Dispatcher, clock security.Clock, events security.EventSink, policy models.SecurityPolicy) *Manager {
	digits := otp.DigitsSix
	if policy.ChallengeDigits == 8 {
		digits = otp.DigitsEight
	}
	return &Manager{
		pending:    make(map[string]models.PendingChallenge),
		clock:      clock,
		events:     events,
		dispatcher: dispatcher,
		ttl:        policy.ChallengeTTL,
		digits:     digits,
	}
}

// Issue creates a code for the account, replacing any outstanding one, and
// hands it to the dispatcher. The returned handle identifies the delivery.
func (m *Manager) Issue(ctx context.Context, account, destination string) (string, error) {
	code, err := m.generateCode()
	if err != nil {
		return "", fmt.Errorf("unable to generate challenge code: %w", err)
	}

	now := m.clock.Now()
	pc := models.PendingChallenge{
		Handle:        uuid.New().String(),
		AccountNumber: account,
		Code:          code,
		ExpiresAt:     now.Add(m.ttl),
	}

	m.mu.Lock()
	m.pending[account] = pc
	m.mu.Unlock()

	m.events.Event(security.LevelMedium, account, "2FA code issued")

	delivery := models.ChallengeDelivery{
		Handle:        pc.Handle,
		AccountNumber: account,
		Destination:   destination,
		Code:          code,
		IssuedAt:      now,
		ExpiresAt:     pc.ExpiresAt,
	}
	if err := m.dispatcher.Dispatch(ctx, delivery); err != nil {
		zap.L().Error("Challenge delivery failed",
			zap.String("account", account),
			zap.String("handle", pc.Handle),
			zap.Error(err))
	}

	return pc.Handle, nil
}

// Verify consumes the pending code on success. An expired code is deleted;
// a wrong code stays pending.
func (m *Manager) Verify(_ context.Context, account, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.pending[account]
	if !ok {
		return ErrNoPending
	}
	if m.clock.Now().After(pc.ExpiresAt) {
		delete(m.pending, account)
		m.events.Event(security.LevelMedium, account, "2FA code expired")
		return ErrChallengeExpired
	}
	if subtle.ConstantTimeCompare([]byte(pc.Code), []byte(code)) != 1 {
		m.events.Event(security.LevelMedium, account, "Invalid 2FA code entered")
		return ErrCodeMismatch
	}

	delete(m.pending, account)
	m.events.Event(security.LevelLow, account, "2FA verification successful")
	return nil
}

// IsPending reports whether an unexpired code is outstanding.
func (m *Manager) IsPending(account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.pending[account]
	if !ok {
		return false
	}
	if m.clock.Now().After(pc.ExpiresAt) {
		delete(m.pending, account)
		return false
	}
	return true
}

// Cancel drops any outstanding code for the account.
func (m *Manager) Cancel(account string) {
	m.mu.Lock()
	delete(m.pending, account)
	m.mu.Unlock()
}

// CleanupExpired deletes every expired code and returns how many it removed.
func (m *Manager) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	removed := 0
	for account, pc := range m.pending {
		if now.After(pc.ExpiresAt) {
			delete(m.pending, account)
			removed++
		}
	}
	return removed, nil
}

// generateCode derives a code from a throwaway HOTP secret.
func (m *Manager) generateCode() (string, error) {
	raw := make([]byte, 20)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)

	return hotp.GenerateCodeCustom(secret, uint64(m.clock.Now().Unix()), hotp.ValidateOpts{
		Digits:    m.digits,
		Algorithm: otp.AlgorithmSHA1,
	})
}
