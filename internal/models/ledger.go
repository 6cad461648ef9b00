package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryDeposit       EntryType = "DEPOSIT"
	EntryWithdrawal    EntryType = "WITHDRAWAL"
	EntryTransferOut   EntryType = "TRANSFER_OUT"
	EntryTransferIn    EntryType = "TRANSFER_IN"
	EntryBillPayment   EntryType = "BILL_PAYMENT"
	EntryInterest      EntryType = "INTEREST"
	EntryAccountClosed EntryType = "ACCOUNT_CLOSED"
)

// Credit reports whether the entry increases the account balance
func (t EntryType) Credit() bool {
	return t == EntryDeposit || t == EntryTransferIn || t == EntryInterest
}

// LedgerEntry is an immutable record of a completed movement of value
type LedgerEntry struct {
	Id            string          `db:"id" json:"id"`
	AccountNumber string          `db:"account_number" json:"account_number"`
	Type          EntryType       `db:"entry_type" json:"type"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	BalanceAfter  decimal.Decimal `db:"balance_after" json:"balance_after"`
	Counterparty  string          `db:"counterparty" json:"counterparty,omitempty"`
	Description   string          `db:"description" json:"description,omitempty"`
	Channel       string          `db:"channel" json:"channel,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
