package store

import (
	"context"
	"errors"

	"bank-terminal-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEntry  = errors.New("duplicate ledger entry")
)

// AccountDirectory is keyed lookup and persistence of account records.
//
// Find returns the live record held by the directory. Callers mutate it only
// while holding the account's lock and make the change durable with Persist.
type AccountDirectory interface {
	Find(ctx context.Context, number string) (*models.Account, error)
	List(ctx context.Context) ([]*models.Account, error)
	Upsert(ctx context.Context, account *models.Account) error
	Persist(ctx context.Context, accounts ...*models.Account) error
	PersistAll(ctx context.Context) error
	Remove(ctx context.Context, number string) error
}

// TransactionLedger is the append-only record of completed transfers of value.
type TransactionLedger interface {
	Append(ctx context.Context, entry models.LedgerEntry) error
	History(ctx context.Context, number string, limit int) ([]models.LedgerEntry, error)
}
