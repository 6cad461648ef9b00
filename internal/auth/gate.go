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

package auth

import (
	"context"
	"errors"
	"fmt"

	"bank-terminal-go/internal/challenge"
	"bank-terminal-go/internal/guard"
	"bank-terminal-go/internal/keylock"
	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/session"
	"bank-terminal-go/internal/store"

	"go.uber.org/zap"
)

// Scope says what an authorized request intends to do.
type Scope int

const (
	ScopeRead Scope = iota
	ScopeMutate
)

// GateParams wires the gate's collaborators.
type GateParams struct {
	Directory  store.AccountDirectory
	Locks      *keylock.Locker
	Sessions   *session.Manager
	Challenges *challenge.Manager
	Detector   *security.Detector
	Events     security.EventSink
	Audit      security.AuditSink
	Clock      security.Clock
	Policy     models.SecurityPolicy
}

// Gate decides whether a presented credential opens a session.
type Gate struct {
	dir        store.AccountDirectory
	locks      *keylock.Locker
	sessions   *session.Manager
	challenges *challenge.Manager
	detector   *security.Detector
	events     security.EventSink
	audit      security.AuditSink
	clock      security.Clock
	policy     models.SecurityPolicy
}

func NewGate(p GateParams) *Gate {
	return &Gate{
		dir:        p.Directory,
		locks:      p.Locks,
		sessions:   p.Sessions,
		challenges: p.Challenges,
		detector:   p.Detector,
		events:     p.Events,
		audit:      p.Audit,
		clock:      p.Clock,
		policy:     p.Policy,
	}
}

// Authenticate runs one login attempt. Denials come back as a Result with
// Outcome Denied; the error is reserved for infrastructure failures.
func (g *Gate) Authenticate(ctx context.Context, number, secret string) (*Result, error) {
	unlock := g.locks.Lock(number)
	defer unlock()

	acct, err := g.dir.Find(ctx, number)
	if errors.Is(err, store.ErrAccountNotFound) {
		g.detector.RecordLogin(number)
		g.events.Event(security.LevelMedium, number, "Login attempt for unknown account")
		return deny(ErrAccountNotFound), nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to look up account: %w", err)
	}

	if err := g.enforceInactivity(ctx, acct); err != nil {
		return nil, err
	}

	switch acct.Status {
	case models.StatusLocked:
		g.events.Event(security.LevelHigh, number, "Login attempt on locked account")
		return deny(ErrAccountLocked), nil
	case models.StatusUnderReview:
		g.events.Event(security.LevelHigh, number, "Login attempt on account under review")
		return deny(ErrUnderReview), nil
	}

	if g.detector.SuspiciousLogin(number) {
		if err := g.flagForReview(ctx, acct, "suspicious login pattern"); err != nil {
			return nil, err
		}
		g.events.Event(security.LevelHigh, number, "Suspicious login pattern detected, account flagged for review")
		return deny(ErrSuspiciousActivity), nil
	}

	// the session manager logs the breach itself
	if !g.sessions.CheckAttempts(ctx, number) {
		return deny(ErrTooManyAttempts), nil
	}

	if !security.Verify(acct.PinDigest, secret) {
		return g.rejectCredential(ctx, acct)
	}
	return g.grant(ctx, acct)
}

// enforceInactivity locks active accounts that have not transacted within
// the inactivity period.
func (g *Gate) enforceInactivity(ctx context.Context, acct *models.Account) error {
	if acct.Status != models.StatusActive {
		return nil
	}
	idle := g.clock.Now().Sub(acct.LastActivity())
	if idle <= g.policy.InactivityLock {
		return nil
	}

	gd := guard.New("inactivity-lock")
	defer gd.Release()
	guard.Snapshot(gd, acct)

	acct.Status = models.StatusLocked
	acct.FailedAttempts = g.policy.MaxFailedAttempts
	if err := g.dir.Persist(ctx, acct); err != nil {
		return fmt.Errorf("unable to persist inactivity lock: %w", err)
	}
	gd.Commit()

	days := int(idle.Hours() / 24)
	g.audit.Record(fmt.Sprintf("Account %s locked due to inactivity (%d days)", acct.Number, days))
	zap.L().Info("Account locked for inactivity",
		zap.String("account", acct.Number),
		zap.Int("idle_days", days))
	return nil
}

func (g *Gate) flagForReview(ctx context.Context, acct *models.Account, why string) error {
	gd := guard.New("flag-for-review")
	defer gd.Release()
	guard.Snapshot(gd, acct)

	acct.Status = models.StatusUnderReview
	if err := g.dir.Persist(ctx, acct); err != nil {
		return fmt.Errorf("unable to persist review flag: %w", err)
	}
	gd.Commit()

	g.audit.Record(fmt.Sprintf("Account %s flagged for review: %s", acct.Number, why))
	return nil
}

func (g *Gate) rejectCredential(ctx context.Context, acct *models.Account) (*Result, error) {
	gd := guard.New("failed-login")
	defer gd.Release()
	guard.Snapshot(gd, acct)

	acct.FailedAttempts++
	remaining := g.policy.MaxFailedAttempts - acct.FailedAttempts
	locked := remaining <= 0
	if locked {
		acct.Status = models.StatusLocked
		remaining = 0
	}
	if err := g.dir.Persist(ctx, acct); err != nil {
		return nil, fmt.Errorf("unable to persist failed attempt: %w", err)
	}
	gd.Commit()

	g.detector.RecordLogin(acct.Number)

	if locked {
		g.audit.Record(fmt.Sprintf("Account %s locked after %d failed login attempts", acct.Number, acct.FailedAttempts))
		g.events.Event(security.LevelHigh, acct.Number,
			fmt.Sprintf("Account locked after %d failed login attempts", acct.FailedAttempts))
	} else {
		g.events.Event(security.LevelMedium, acct.Number,
			fmt.Sprintf("Failed login attempt %d of %d", acct.FailedAttempts, g.policy.MaxFailedAttempts))
	}

	return &Result{Outcome: Denied, Reason: ErrInvalidCredential, RemainingAttempts: remaining}, nil
}

func (g *Gate) grant(ctx context.Context, acct *models.Account) (*Result, error) {
	gd := guard.New("login")
	defer gd.Release()
	guard.Snapshot(gd, acct)

	acct.FailedAttempts = 0
	acct.LastLoginAt = g.clock.Now()
	if err := g.dir.Persist(ctx, acct); err != nil {
		return nil, fmt.Errorf("unable to persist login: %w", err)
	}
	gd.Commit()

	token, err := g.sessions.CreateSession(ctx, acct.Number)
	if err != nil {
		return nil, err
	}
	g.detector.RecordLogin(acct.Number)

	result := &Result{Outcome: Granted, Token: token, RemainingAttempts: g.policy.MaxFailedAttempts}

	if !acct.Balance.GreaterThan(g.policy.HighValueThreshold) {
		g.events.Event(security.LevelLow, acct.Number, "Successful login")
		return result, nil
	}

	handle, err := g.challenges.Issue(ctx, acct.Number, acct.Phone)
	if err != nil {
		_ = g.sessions.EndSession(ctx, acct.Number)
		return nil, fmt.Errorf("unable to issue step-up challenge: %w", err)
	}
	if err := g.sessions.SetStepUp(ctx, acct.Number, models.StepUpPending); err != nil {
		return nil, fmt.Errorf("unable to mark step-up pending: %w", err)
	}

	result.Outcome = GrantedPendingChallenge
	result.ChallengeHandle = handle
	g.events.Event(security.LevelLow, acct.Number, "Successful login, step-up verification pending")
	return result, nil
}

// CompleteChallenge verifies the step-up code for a logged-in session.
// Challenge failures come back as the challenge package's sentinel errors.
func (g *Gate) CompleteChallenge(ctx context.Context, number, token, code string) error {
	if err := g.sessions.ValidateSession(ctx, number, token); err != nil {
		return sessionError(err)
	}
	if err := g.challenges.Verify(ctx, number, code); err != nil {
		return err
	}
	return g.sessions.SetStepUp(ctx, number, models.StepUpVerified)
}

// Authorize validates the session token. Mutating requests are refused while
// a step-up challenge is outstanding.
func (g *Gate) Authorize(ctx context.Context, number, token string, scope Scope) error {
	if err := g.sessions.ValidateSession(ctx, number, token); err != nil {
		return sessionError(err)
	}
	if scope == ScopeRead {
		return nil
	}
	s, err := g.sessions.Get(ctx, number)
	if err != nil {
		return err
	}
	if s != nil && s.StepUp == models.StepUpPending {
		return ErrStepUpRequired
	}
	return nil
}

// StepUpVerified reports whether the account's session already passed a
// step-up challenge.
func (g *Gate) StepUpVerified(ctx context.Context, number string) (bool, error) {
	s, err := g.sessions.Get(ctx, number)
	if err != nil {
		return false, err
	}
	return s != nil && s.StepUp == models.StepUpVerified, nil
}

// EscalateStepUp issues a challenge for a risky operation and marks the
// session as owing it.
func (g *Gate) EscalateStepUp(ctx context.Context, acct *models.Account) (string, error) {
	handle, err := g.challenges.Issue(ctx, acct.Number, acct.Phone)
	if err != nil {
		return "", fmt.Errorf("unable to issue step-up challenge: %w", err)
	}
	if err := g.sessions.SetStepUp(ctx, acct.Number, models.StepUpPending); err != nil {
		return "", fmt.Errorf("unable to mark step-up pending: %w", err)
	}
	return handle, nil
}

// Logout ends the session and drops any outstanding challenge.
func (g *Gate) Logout(ctx context.Context, number string) error {
	g.challenges.Cancel(number)
	return g.sessions.EndSession(ctx, number)
}

// Reinstate returns a LOCKED or UNDER_REVIEW account to ACTIVE and clears the
// session attempt counter, also for accounts that are already ACTIVE. It is
// the branch-side remediation path and is never reached from a login.
func (g *Gate) Reinstate(ctx context.Context, number, officer string) error {
	unlock := g.locks.Lock(number)
	defer unlock()

	acct, err := g.dir.Find(ctx, number)
	if err != nil {
		return err
	}
	g.sessions.ResetAttempts(number)
	if acct.Status == models.StatusActive {
		return nil
	}

	gd := guard.New("reinstate")
	defer gd.Release()
	guard.Snapshot(gd, acct)

	previous := acct.Status
	acct.Status = models.StatusActive
	acct.FailedAttempts = 0
	acct.LastTransactionAt = g.clock.Now()
	if err := g.dir.Persist(ctx, acct); err != nil {
		return fmt.Errorf("unable to persist reinstatement: %w", err)
	}
	gd.Commit()

	g.audit.Record(fmt.Sprintf("Account %s reinstated from %s by %s", number, previous, officer))
	return nil
}

func deny(reason error) *Result {
	return &Result{Outcome: Denied, Reason: reason}
}

func sessionError(err error) error {
	if errors.Is(err, session.ErrSessionNotFound) ||
		errors.Is(err, session.ErrSessionExpired) ||
		errors.Is(err, session.ErrTokenMismatch) {
		return fmt.Errorf("%w: %w", ErrInvalidSessionToken, err)
	}
	return err
}
