package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T, demo bool) (*Service, func()) {
	t.Helper()
	service, err := NewService(context.Background(), models.DatabaseConfig{
		Path:               ":memory:",
		MaxOpenConns:       1,
		MaxIdleConns:       1,
		PingTimeout:        time.Second,
		CreateDemoAccounts: demo,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	return service, service.Close
}

func testAccount(number string) *models.Account {
	opened := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return &models.Account{
		Number:            number,
		HolderName:        "Meera Iyer",
		PinDigest:         security.Digest("5917"),
		Phone:             "+919800000009",
		Email:             "meera@example.com",
		Type:              models.AccountTypeSavings,
		Balance:           decimal.RequireFromString("12500.50"),
		Status:            models.StatusActive,
		OpenedAt:          opened,
		LastTransactionAt: opened,
		DailyWithdrawn:    decimal.Zero,
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	_, err := NewService(context.Background(), models.DatabaseConfig{Path: ""})
	if err == nil {
		t.Fatal("Expected error for empty path")
	}

	_, err = NewService(context.Background(), models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 0})
	if err == nil {
		t.Fatal("Expected error for zero max open connections")
	}
}

func TestDemoAccounts(t *testing.T) {
	service, cleanup := setupTestDb(t, true)
	defer cleanup()

	accounts, err := service.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("Expected 3 demo accounts, got %d", len(accounts))
	}
	if accounts[0].Number != "APNA100000000001" {
		t.Errorf("Expected accounts sorted by number, got %s first", accounts[0].Number)
	}
	if !security.Verify(accounts[1].PinDigest, "7391") {
		t.Error("Expected demo PIN to verify")
	}
}

func TestUpsertFindAndPersist(t *testing.T) {
	service, cleanup := setupTestDb(t, false)
	defer cleanup()
	ctx := context.Background()

	acct := testAccount("APNA200000000001")
	if err := service.Upsert(ctx, acct); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	found, err := service.Find(ctx, "APNA200000000001")
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if found != acct {
		t.Error("Expected Find to return the cached record")
	}

	withdrawnAt := time.Date(2024, 3, 2, 9, 30, 0, 0, time.UTC)
	found.Balance = found.Balance.Sub(decimal.NewFromInt(500))
	found.DailyWithdrawn = decimal.NewFromInt(500)
	found.LastWithdrawalAt = withdrawnAt
	found.FailedAttempts = 2
	if err := service.Persist(ctx, found); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	// reload from disk to prove the row was written
	service.accounts = make(map[string]*models.Account)
	if err := service.loadAccounts(ctx); err != nil {
		t.Fatalf("loadAccounts failed: %v", err)
	}

	reloaded, err := service.Find(ctx, "APNA200000000001")
	if err != nil {
		t.Fatalf("Find after reload failed: %v", err)
	}
	if !reloaded.Balance.Equal(decimal.RequireFromString("12000.50")) {
		t.Errorf("Expected balance 12000.50, got %s", reloaded.Balance)
	}
	if !reloaded.LastWithdrawalAt.Equal(withdrawnAt) {
		t.Errorf("Expected last withdrawal %v, got %v", withdrawnAt, reloaded.LastWithdrawalAt)
	}
	if !reloaded.LastLoginAt.IsZero() {
		t.Errorf("Expected zero last login, got %v", reloaded.LastLoginAt)
	}
	if reloaded.FailedAttempts != 2 {
		t.Errorf("Expected 2 failed attempts, got %d", reloaded.FailedAttempts)
	}
	if reloaded.Type != models.AccountTypeSavings {
		t.Errorf("Expected SAVINGS, got %s", reloaded.Type)
	}
}

func TestPersistIsAtomic(t *testing.T) {
	service, cleanup := setupTestDb(t, false)
	defer cleanup()
	ctx := context.Background()

	a := testAccount("APNA200000000001")
	b := testAccount("APNA200000000002")
	if err := service.Upsert(ctx, a); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := service.Upsert(ctx, b); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	_, err := service.db.ExecContext(ctx, `CREATE TRIGGER reject_b BEFORE UPDATE ON accounts
		WHEN NEW.number = 'APNA200000000002' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	if err != nil {
		t.Fatalf("Failed to create trigger: %v", err)
	}

	// the second row is rejected, so the first must not be written either
	a.Balance = decimal.NewFromInt(1)
	if err := service.Persist(ctx, a, b); err == nil {
		t.Fatal("Expected persist to fail")
	}

	var balance string
	if err := service.db.QueryRowContext(ctx, `SELECT balance FROM accounts WHERE number = ?`, a.Number).Scan(&balance); err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if balance != "12500.5" {
		t.Errorf("Expected first row rolled back to 12500.5, got %s", balance)
	}
}

func TestRemove(t *testing.T) {
	service, cleanup := setupTestDb(t, false)
	defer cleanup()
	ctx := context.Background()

	if err := service.Upsert(ctx, testAccount("APNA200000000001")); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := service.Remove(ctx, "APNA200000000001"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	_, err := service.Find(ctx, "APNA200000000001")
	if !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
	if err := service.Remove(ctx, "APNA200000000001"); !errors.Is(err, store.ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound on second remove, got %v", err)
	}
}

func TestLedgerAppendAndHistory(t *testing.T) {
	service, cleanup := setupTestDb(t, false)
	defer cleanup()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, typ := range []models.EntryType{models.EntryDeposit, models.EntryWithdrawal, models.EntryBillPayment} {
		err := service.Append(ctx, models.LedgerEntry{
			Id:            "entry-" + string(rune('a'+i)),
			AccountNumber: "APNA200000000001",
			Type:          typ,
			Amount:        decimal.NewFromInt(int64(100 * (i + 1))),
			BalanceAfter:  decimal.NewFromInt(5000),
			Channel:       "http",
			CreatedAt:     base.Add(time.Duration(i) * 500 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	history, err := service.History(ctx, "APNA200000000001", 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(history))
	}
	if history[0].Type != models.EntryBillPayment || history[1].Type != models.EntryWithdrawal {
		t.Errorf("Expected newest first, got %s then %s", history[0].Type, history[1].Type)
	}
	if !history[0].Amount.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Expected amount 300, got %s", history[0].Amount)
	}
	if !history[1].CreatedAt.Equal(base.Add(500 * time.Millisecond)) {
		t.Errorf("Unexpected created_at %v", history[1].CreatedAt)
	}

	empty, err := service.History(ctx, "APNA999999999999", 10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected no entries, got %d", len(empty))
	}
}

func TestLedgerAppend_Duplicate(t *testing.T) {
	service, cleanup := setupTestDb(t, false)
	defer cleanup()
	ctx := context.Background()

	entry := models.LedgerEntry{
		Id:            "entry-1",
		AccountNumber: "APNA200000000001",
		Type:          models.EntryDeposit,
		Amount:        decimal.NewFromInt(500),
		BalanceAfter:  decimal.NewFromInt(500),
		CreatedAt:     time.Now(),
	}
	if err := service.Append(ctx, entry); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := service.Append(ctx, entry); !errors.Is(err, store.ErrDuplicateEntry) {
		t.Errorf("Expected ErrDuplicateEntry, got %v", err)
	}
}
