package database

import (
	"context"
	"errors"
	"fmt"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// Append records a completed transaction. Entry ids are unique; a replayed
// id comes back as store.ErrDuplicateEntry.
func (s *Service) Append(ctx context.Context, e models.LedgerEntry) error {
	_, err := s.db.ExecContext(ctx, queryInsertLedgerEntry,
		e.Id, e.AccountNumber, string(e.Type), e.Amount.String(), e.BalanceAfter.String(),
		e.Counterparty, e.Description, e.Channel, formatTime(e.CreatedAt))
	if err != nil {
		if isPrimaryKeyViolation(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateEntry, e.Id)
		}
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	return nil
}

// History returns the newest entries for an account first.
func (s *Service) History(ctx context.Context, number string, limit int) ([]models.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, queryGetLedgerHistory, number, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger history: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var (
			e                    models.LedgerEntry
			amount, balanceAfter string
			createdAt            string
		)
		if err := rows.Scan(&e.Id, &e.AccountNumber, &e.Type, &amount, &balanceAfter,
			&e.Counterparty, &e.Description, &e.Channel, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		if e.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amount, err)
		}
		if e.BalanceAfter, err = decimal.NewFromString(balanceAfter); err != nil {
			return nil, fmt.Errorf("failed to parse balance_after '%s': %w", balanceAfter, err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse created_at '%s': %w", createdAt, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isPrimaryKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
