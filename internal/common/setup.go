package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/bank"
	"bank-terminal-go/internal/challenge"
	"bank-terminal-go/internal/database"
	"bank-terminal-go/internal/formance"
	"bank-terminal-go/internal/keylock"
	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/notify"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/session"
	"bank-terminal-go/internal/store"
	"bank-terminal-go/internal/sweeper"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService  *database.Service
	Formance   *formance.Service
	Ledger     store.TransactionLedger
	Gate       *auth.Gate
	Bank       *bank.Service
	Sweeper    *sweeper.Sweeper
	AuditLog   *security.AuditLog
	SessionMgr *session.Manager

	closers []func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices builds the full terminal: account store, ledger,
// session and challenge state, the authentication gate and the banking
// operations behind it.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	s := &Services{}
	clock := security.SystemClock{}
	policy := cfg.Policy

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	s.DbService = dbService
	s.closers = append(s.closers, dbService.Close)

	if err := s.initLedger(ctx, cfg.Ledger); err != nil {
		s.Close()
		return nil, err
	}

	audit, closeAudit, err := security.OpenAuditLog(cfg.Logs.AuditPath, clock)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.AuditLog = audit
	s.closers = append(s.closers, func() { _ = audit.Sync(); closeAudit() })

	events, closeEvents, err := security.OpenSecurityLog(cfg.Logs.SecurityPath, audit, clock)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, closeEvents)

	sessionStore, err := s.initSessionStore(ctx, cfg.Sessions, policy)
	if err != nil {
		s.Close()
		return nil, err
	}

	dispatcher, err := s.initDispatcher(cfg.Delivery)
	if err != nil {
		s.Close()
		return nil, err
	}

	locks := keylock.New()
	detector := security.NewDetector(policy, clock, events)
	s.SessionMgr = session.NewManager(sessionStore, clock, events, policy)
	challenges := challenge.NewManager(dispatcher, clock, events, policy)

	s.Gate = auth.NewGate(auth.GateParams{
		Directory:  dbService,
		Locks:      locks,
		Sessions:   s.SessionMgr,
		Challenges: challenges,
		Detector:   detector,
		Events:     events,
		Audit:      audit,
		Clock:      clock,
		Policy:     policy,
	})

	s.Bank = bank.NewService(bank.ServiceParams{
		Directory: dbService,
		Ledger:    s.Ledger,
		Locks:     locks,
		Detector:  detector,
		StepUp:    s.Gate,
		Events:    events,
		Audit:     audit,
		Clock:     clock,
		Policy:    policy,
	})

	s.Sweeper, err = sweeper.New(cfg.Sweeper.Schedule, map[string]sweeper.Cleaner{
		"sessions":   s.SessionMgr,
		"challenges": challenges,
		"trackers":   detector,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	zap.L().Info("Terminal services initialized",
		zap.String("ledger_backend", cfg.Ledger.Backend),
		zap.String("session_backend", cfg.Sessions.Backend),
		zap.String("delivery_backend", cfg.Delivery.Backend))

	return s, nil
}

func (s *Services) initLedger(ctx context.Context, cfg models.LedgerConfig) error {
	if cfg.Backend != "formance" {
		s.Ledger = s.DbService
		return nil
	}

	zap.L().Info("Using Formance ledger", zap.String("ledger", cfg.Formance.LedgerName))
	fs, err := formance.NewService(ctx, cfg.Formance)
	if err != nil {
		return err
	}
	s.Formance = fs
	s.Ledger = fs
	s.closers = append(s.closers, fs.Close)
	return nil
}

func (s *Services) initSessionStore(ctx context.Context, cfg models.SessionStoreConfig, policy models.SecurityPolicy) (session.Store, error) {
	if cfg.Backend != "redis" {
		return session.NewMemoryStore(), nil
	}

	client, err := session.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = client.Close() })
	zap.L().Info("Using Redis session store", zap.String("addr", cfg.RedisAddr))
	return session.NewRedisStore(client, cfg.KeyPrefix, policy.SessionTimeout), nil
}

func (s *Services) initDispatcher(cfg models.DeliveryConfig) (challenge.Dispatcher, error) {
	var next challenge.Dispatcher
	switch cfg.Backend {
	case "amqp":
		amqpDispatcher, err := notify.NewAMQPDispatcher(cfg.AMQPURL, cfg.Exchange, cfg.RoutingKey)
		if err != nil {
			return nil, fmt.Errorf("unable to start challenge delivery: %w", err)
		}
		s.closers = append(s.closers, amqpDispatcher.Close)
		next = amqpDispatcher
	default:
		next = notify.NewConsoleDispatcher(os.Stdout)
	}
	return notify.NewThrottled(next, cfg.RatePerMinute, cfg.Burst), nil
}

// InitializeDatabaseOnly initializes just the account store.
// Useful for read-only operations like listing balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// Close releases resources in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
