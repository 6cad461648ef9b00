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

// Package guard provides a scoped unit of work for in-memory mutations.
//
// A Guard collects compensating actions while a caller mutates state. If the
// caller reaches Commit (normally right after persistence succeeds), nothing
// is undone. Otherwise the deferred Release runs every action in reverse
// registration order:
//
//	g := guard.New("withdraw")
//	defer g.Release()
//	guard.Snapshot(g, account)
//	account.Balance = account.Balance.Sub(amount)
//	if err := dir.Persist(ctx, account); err != nil {
//		return err
//	}
//	g.Commit()
package guard

import (
	"fmt"

	"go.uber.org/zap"
)

// Action undoes one mutation.
type Action interface {
	Undo() error
}

// Compensation adapts a plain function to Action.
type Compensation func() error

func (c Compensation) Undo() error { return c() }

type restore[T any] struct {
	target *T
	saved  T
}

func (r restore[T]) Undo() error {
	*r.target = r.saved
	return nil
}

// Snapshot records the current value behind target and registers an action
// that writes it back.
func Snapshot[T any](g *Guard, target *T) {
	g.Add(restore[T]{target: target, saved: *target})
}

// Guard is owned by the call that opened it and is not safe for concurrent use.
type Guard struct {
	name      string
	actions   []Action
	committed bool
}

func New(name string) *Guard {
	return &Guard{name: name}
}

func (g *Guard) Add(action Action) {
	g.actions = append(g.actions, action)
}

func (g *Guard) Commit() {
	g.committed = true
}

func (g *Guard) Committed() bool {
	return g.committed
}

// Release rolls back unless committed. Failures and panics from individual
// actions are logged and do not stop the remaining actions.
func (g *Guard) Release() {
	if g.committed || len(g.actions) == 0 {
		g.actions = nil
		return
	}

	zap.L().Warn("Rolling back uncommitted mutation",
		zap.String("guard", g.name),
		zap.Int("actions", len(g.actions)))

	for i := len(g.actions) - 1; i >= 0; i-- {
		if err := undo(g.actions[i]); err != nil {
			zap.L().Error("Compensating action failed",
				zap.String("guard", g.name),
				zap.Int("index", i),
				zap.Error(err))
		}
	}
	g.actions = nil
}

func undo(action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during undo: %v", r)
		}
	}()
	return action.Undo()
}
