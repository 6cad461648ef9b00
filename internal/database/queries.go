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

package database

const (
	schema = `
	-- Account directory
	CREATE TABLE IF NOT EXISTS accounts (
		number TEXT PRIMARY KEY,
		holder_name TEXT NOT NULL,
		pin_digest TEXT NOT NULL,
		phone TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		account_type TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL DEFAULT 'ACTIVE',
		opened_at TEXT NOT NULL,
		failed_attempts INTEGER NOT NULL DEFAULT 0,
		last_transaction_at TEXT NOT NULL DEFAULT '',
		last_login_at TEXT NOT NULL DEFAULT '',
		last_withdrawal_at TEXT NOT NULL DEFAULT '',
		daily_withdrawn TEXT NOT NULL DEFAULT '0',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_status ON accounts(status);

	-- Append-only transaction ledger
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_number TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		counterparty TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		channel TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account_created ON ledger_entries(account_number, created_at);
	`

	// Account queries
	queryListAccounts = `
		SELECT number, holder_name, pin_digest, phone, email, account_type, balance, status,
		       opened_at, failed_attempts, last_transaction_at, last_login_at,
		       last_withdrawal_at, daily_withdrawn
		FROM accounts
		ORDER BY number`

	queryUpsertAccount = `
		INSERT INTO accounts (
			number, holder_name, pin_digest, phone, email, account_type, balance, status,
			opened_at, failed_attempts, last_transaction_at, last_login_at,
			last_withdrawal_at, daily_withdrawn
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			holder_name = excluded.holder_name,
			pin_digest = excluded.pin_digest,
			phone = excluded.phone,
			email = excluded.email,
			account_type = excluded.account_type,
			balance = excluded.balance,
			status = excluded.status,
			failed_attempts = excluded.failed_attempts,
			last_transaction_at = excluded.last_transaction_at,
			last_login_at = excluded.last_login_at,
			last_withdrawal_at = excluded.last_withdrawal_at,
			daily_withdrawn = excluded.daily_withdrawn,
			updated_at = CURRENT_TIMESTAMP`

	queryDeleteAccount = `
		DELETE FROM accounts WHERE number = ?`

	// Ledger queries
	queryInsertLedgerEntry = `
		INSERT INTO ledger_entries (
			id, account_number, entry_type, amount, balance_after,
			counterparty, description, channel, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetLedgerHistory = `
		SELECT id, account_number, entry_type, amount, balance_after,
		       counterparty, description, channel, created_at
		FROM ledger_entries
		WHERE account_number = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`
)
