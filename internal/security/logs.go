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

package security

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TimeLayout is the timestamp format of audit and security lines.
const TimeLayout = "2006-01-02 15:04:05"

// AuditSink receives plain timestamped audit events.
type AuditSink interface {
	Record(event string)
}

// EventSink receives leveled security events. account may be empty.
type EventSink interface {
	Event(level Level, account, event string)
}

// AuditLog writes "<timestamp> - <event>" lines.
type AuditLog struct {
	logger *zap.Logger
}

func NewAuditLog(ws zapcore.WriteSyncer, clock Clock) *AuditLog {
	return &AuditLog{logger: lineLogger(ws, " - ", clock)}
}

// OpenAuditLog appends audit lines to the file at path.
func OpenAuditLog(path string, clock Clock) (*AuditLog, func(), error) {
	ws, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open audit log %s: %w", path, err)
	}
	return NewAuditLog(ws, clock), closeFn, nil
}

func (a *AuditLog) Record(event string) {
	a.logger.Info(event)
}

func (a *AuditLog) Sync() error {
	return a.logger.Sync()
}

// SecurityLog writes "<timestamp> [<LEVEL>] Account:<id> <event>" lines and
// mirrors HIGH and CRITICAL events into the audit trail.
type SecurityLog struct {
	logger *zap.Logger
	audit  AuditSink
}

func NewSecurityLog(ws zapcore.WriteSyncer, audit AuditSink, clock Clock) *SecurityLog {
	return &SecurityLog{logger: lineLogger(ws, " ", clock), audit: audit}
}

// OpenSecurityLog appends security lines to the file at path.
func OpenSecurityLog(path string, audit AuditSink, clock Clock) (*SecurityLog, func(), error) {
	ws, closeFn, err := zap.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open security log %s: %w", path, err)
	}
	return NewSecurityLog(ws, audit, clock), closeFn, nil
}

func (s *SecurityLog) Event(level Level, account, event string) {
	body := event
	if account != "" {
		body = "Account:" + account + " " + event
	}
	s.logger.Info("[" + level.String() + "] " + body)

	if ce := zap.L().Check(level.zapLevel(), "Security event"); ce != nil {
		ce.Write(
			zap.String("level", level.String()),
			zap.String("account", account),
			zap.String("event", event))
	}

	if level >= LevelHigh && s.audit != nil {
		s.audit.Record(fmt.Sprintf("SECURITY[%s]: %s", level, body))
	}
}

func (s *SecurityLog) Sync() error {
	return s.logger.Sync()
}

func lineLogger(ws zapcore.WriteSyncer, separator string, clock Clock) *zap.Logger {
	encoder := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "ts",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout(TimeLayout),
		ConsoleSeparator: separator,
	})
	core := zapcore.NewCore(encoder, zapcore.Lock(ws), zapcore.DebugLevel)
	return zap.New(core, zap.WithClock(zapClock{clock: clock}))
}
