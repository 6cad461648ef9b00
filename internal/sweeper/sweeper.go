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

package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Cleaner drops expired entries and reports how many it removed.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int, error)
}

// Sweeper periodically evicts expired sessions and challenges so idle state
// does not outlive its timeout when no request touches it.
type Sweeper struct {
	cron     *cron.Cron
	schedule string
	cleaners map[string]Cleaner
	timeout  time.Duration
}

// New builds a sweeper for the given cron schedule, e.g. "@every 1m".
func New(schedule string, cleaners map[string]Cleaner) (*Sweeper, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}

	logger := zapCronLogger{log: zap.L().Named("sweeper")}
	c := cron.New(cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	return &Sweeper{
		cron:     c,
		schedule: schedule,
		cleaners: cleaners,
		timeout:  30 * time.Second,
	}, nil
}

// Start registers the sweep job and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}

	zap.L().Info("Scheduled expiry sweep", zap.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		zap.L().Warn("Sweep still running at shutdown")
	}
}

// RunOnce runs every cleaner and returns the number of entries each removed.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(s.cleaners))
	for name, cleaner := range s.cleaners {
		n, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			zap.L().Error("Expiry sweep failed", zap.String("target", name), zap.Error(err))
			continue
		}
		removed[name] = n
		if n > 0 {
			zap.L().Info("Expired entries removed", zap.String("target", name), zap.Int("count", n))
		}
	}
	return removed
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	log *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
