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

package session

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"

	"go.uber.org/zap"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrTokenMismatch   = errors.New("session token mismatch")
)

const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Manager owns the live sessions and the per-account attempt counters.
type Manager struct {
	mu          sync.Mutex
	store       Store
	clock       security.Clock
	events      security.EventSink
	timeout     time.Duration
	maxAttempts int
	tokenLength int
	attempts    map[string]int
}

func NewManager(store Store, clock security.Clock, events security.EventSink, policy models.SecurityPolicy) *Manager {
	return &Manager{
		store:       store,
		clock:       clock,
		events:      events,
		timeout:     policy.SessionTimeout,
		maxAttempts: policy.MaxSessionAttempts,
		tokenLength: policy.TokenLength,
		attempts:    make(map[string]int),
	}
}

// CreateSession sweeps expired sessions, then replaces any session the
// account already has with a fresh one and resets its attempt counter.
func (m *Manager) CreateSession(ctx context.Context, account string) (string, error) {
	if _, err := m.CleanupExpired(ctx); err != nil {
		zap.L().Warn("Session sweep before create failed", zap.Error(err))
	}

	token, err := newToken(m.tokenLength)
	if err != nil {
		return "", fmt.Errorf("unable to generate session token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	s := models.Session{
		AccountNumber: account,
		Token:         token,
		CreatedAt:     now,
		LastActivity:  now,
	}
	if err := m.store.Put(ctx, s); err != nil {
		return "", fmt.Errorf("unable to store session: %w", err)
	}
	m.attempts[account] = 0

	m.events.Event(security.LevelLow, account, "Session created")
	return token, nil
}

// ValidateSession checks the token and refreshes last activity. An idle
// session is deleted. A wrong token leaves the session untouched.
func (m *Manager) ValidateSession(ctx context.Context, account, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("unable to load session: %w", err)
	}
	if s == nil {
		return ErrSessionNotFound
	}

	now := m.clock.Now()
	if now.Sub(s.LastActivity) > m.timeout {
		if err := m.store.Delete(ctx, account); err != nil {
			return fmt.Errorf("unable to delete expired session: %w", err)
		}
		m.events.Event(security.LevelMedium, account, "Session expired due to inactivity")
		return ErrSessionExpired
	}

	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		m.events.Event(security.LevelHigh, account, "Session token mismatch")
		return ErrTokenMismatch
	}

	s.LastActivity = now
	if err := m.store.Put(ctx, *s); err != nil {
		return fmt.Errorf("unable to refresh session: %w", err)
	}
	return nil
}

// Get returns the session without touching it, or nil when there is none.
func (m *Manager) Get(ctx context.Context, account string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Get(ctx, account)
}

// SetStepUp records the step-up state on an existing session.
func (m *Manager) SetStepUp(ctx context.Context, account string, state models.StepUpState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Get(ctx, account)
	if err != nil {
		return fmt.Errorf("unable to load session: %w", err)
	}
	if s == nil {
		return ErrSessionNotFound
	}
	s.StepUp = state
	return m.store.Put(ctx, *s)
}

// EndSession removes every trace of the account's session. Ending a session
// that does not exist is not an error.
func (m *Manager) EndSession(ctx context.Context, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Delete(ctx, account); err != nil {
		return fmt.Errorf("unable to delete session: %w", err)
	}
	delete(m.attempts, account)

	m.events.Event(security.LevelLow, account, "Session ended")
	return nil
}

// CleanupExpired deletes every session idle past the timeout and returns how
// many it removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sessions, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("unable to list sessions: %w", err)
	}

	now := m.clock.Now()
	removed := 0
	for _, s := range sessions {
		if now.Sub(s.LastActivity) <= m.timeout {
			continue
		}
		if err := m.store.Delete(ctx, s.AccountNumber); err != nil {
			return removed, fmt.Errorf("unable to delete session %s: %w", s.AccountNumber, err)
		}
		m.events.Event(security.LevelLow, s.AccountNumber, "Expired session cleaned up")
		removed++
	}
	return removed, nil
}

// CheckAttempts counts one more attempt for the account and reports whether
// it is still within the limit. CreateSession and ResetAttempts reset the counter.
func (m *Manager) CheckAttempts(_ context.Context, account string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts[account]++
	if m.attempts[account] > m.maxAttempts {
		m.events.Event(security.LevelHigh, account,
			fmt.Sprintf("Too many attempts: %d", m.attempts[account]))
		return false
	}
	return true
}

// ResetAttempts clears the attempt counter without touching any session.
func (m *Manager) ResetAttempts(account string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, account)
}

func newToken(length int) (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	b := make([]byte, length)
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = tokenAlphabet[n.Int64()]
	}
	return string(b), nil
}
