package formance

import (
	"context"
	"fmt"
	"strings"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Every balance-affecting entry becomes one Formance transaction that touches
// exactly one customer account. Transfers clear through @bank:transfers so
// each side carries its own entry and balance_after.
// ---------------------------------------------------------------------------

const numscriptPosting = `vars {
  asset $asset
  number $amount
  account $source
  account $destination
  string $entry_id
  string $entry_type
  string $account_number
  string $counterparty
  string $balance_after
  string $description
  string $channel
}

send [$asset $amount] (
  source = $source allowing unbounded overdraft
  destination = $destination
)

set_tx_meta("entry_id", $entry_id)
set_tx_meta("entry_type", $entry_type)
set_tx_meta("account_number", $account_number)
set_tx_meta("counterparty", $counterparty)
set_tx_meta("balance_after", $balance_after)
set_tx_meta("description", $description)
set_tx_meta("channel", $channel)
`

const (
	transferClearing = "bank:transfers"
	withdrawalsPool  = "bank:withdrawals"
	interestExpense  = "bank:interest"
)

func customerAddress(number string) string {
	return "accounts:" + number
}

// route returns the source and destination Formance addresses for an entry.
func route(e models.LedgerEntry) (source, destination string, err error) {
	acct := customerAddress(e.AccountNumber)
	switch e.Type {
	case models.EntryDeposit:
		return "world", acct, nil
	case models.EntryInterest:
		return interestExpense, acct, nil
	case models.EntryTransferIn:
		return transferClearing, acct, nil
	case models.EntryWithdrawal:
		return acct, withdrawalsPool, nil
	case models.EntryTransferOut:
		return acct, transferClearing, nil
	case models.EntryBillPayment:
		biller := strings.ToLower(e.Counterparty)
		if biller == "" {
			biller = "other"
		}
		return acct, "billers:" + biller, nil
	}
	return "", "", fmt.Errorf("entry type %s has no posting route", e.Type)
}

// Append posts an entry as a Numscript transaction referenced by the entry id.
// ACCOUNT_CLOSED moves no value and is recorded as account metadata instead.
func (s *Service) Append(ctx context.Context, e models.LedgerEntry) error {
	if e.Type == models.EntryAccountClosed {
		return s.markClosed(ctx, e)
	}

	source, destination, err := route(e)
	if err != nil {
		return err
	}

	fAsset := formanceAsset(Currency)
	smallAmt := e.Amount.Shift(int32(precisionFor(Currency))).BigInt().String()

	vars := map[string]string{
		"asset":          fAsset,
		"amount":         smallAmt,
		"source":         source,
		"destination":    destination,
		"entry_id":       e.Id,
		"entry_type":     string(e.Type),
		"account_number": e.AccountNumber,
		"counterparty":   e.Counterparty,
		"balance_after":  e.BalanceAfter.String(),
		"description":    e.Description,
		"channel":        e.Channel,
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(e.Id),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptPosting,
			Vars:  vars,
		},
	}
	if !e.CreatedAt.IsZero() {
		ts := e.CreatedAt
		postTx.Timestamp = &ts
	}

	_, err = s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return fmt.Errorf("%w: %s", store.ErrDuplicateEntry, e.Id)
		}
		return fmt.Errorf("error posting %s entry: %w", e.Type, err)
	}

	zap.L().Debug("Entry posted to Formance",
		zap.String("entry_id", e.Id),
		zap.String("account", e.AccountNumber),
		zap.String("type", string(e.Type)),
		zap.String("amount", e.Amount.String()))
	return nil
}

func (s *Service) markClosed(ctx context.Context, e models.LedgerEntry) error {
	_, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: customerAddress(e.AccountNumber),
		RequestBody: map[string]string{
			"status":         "CLOSED",
			"closed_at":      e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			"close_entry_id": e.Id,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark account closed: %w", err)
	}
	zap.L().Info("Account marked closed in Formance", zap.String("account", e.AccountNumber))
	return nil
}

// History returns the newest entries for an account first.
func (s *Service) History(ctx context.Context, number string, limit int) ([]models.LedgerEntry, error) {
	addr := customerAddress(number)
	pageSize := int64(limit)

	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$or": []any{
				map[string]any{"$match": map[string]any{"source": addr}},
				map[string]any{"$match": map[string]any{"destination": addr}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var entries []models.LedgerEntry
	for _, tx := range resp.V2TransactionsCursorResponse.Cursor.Data {
		if tx.Metadata["account_number"] != number {
			continue
		}
		entries = append(entries, entryFromTransaction(tx))
		if len(entries) >= limit {
			break
		}
	}
	return entries, nil
}

func entryFromTransaction(tx shared.V2Transaction) models.LedgerEntry {
	amt := decimal.Zero
	for _, p := range tx.Postings {
		symbol := assetSymbol(p.Asset)
		if symbol == Currency {
			amt = bigIntToDecimal(p.Amount, symbol)
		}
	}

	id := tx.Metadata["entry_id"]
	if id == "" && tx.Reference != nil {
		id = *tx.Reference
	}
	if id == "" {
		id = fmt.Sprintf("%d", tx.ID)
	}

	balanceAfter, err := decimal.NewFromString(tx.Metadata["balance_after"])
	if err != nil {
		balanceAfter = decimal.Zero
	}

	return models.LedgerEntry{
		Id:            id,
		AccountNumber: tx.Metadata["account_number"],
		Type:          models.EntryType(tx.Metadata["entry_type"]),
		Amount:        amt,
		BalanceAfter:  balanceAfter,
		Counterparty:  tx.Metadata["counterparty"],
		Description:   tx.Metadata["description"],
		Channel:       tx.Metadata["channel"],
		CreatedAt:     tx.Timestamp,
	}
}
