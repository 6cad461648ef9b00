package bank

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"bank-terminal-go/internal/models"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const accountPrefix = "APNA"

// OpenAccountParams describes a new account holder.
type OpenAccountParams struct {
	HolderName     string
	Phone          string
	Email          string
	Type           models.AccountType
	PIN            string
	InitialDeposit decimal.Decimal
}

// OpenAccount validates the holder, assigns a fresh account number and
// records the opening deposit.
func (s *Service) OpenAccount(ctx context.Context, p OpenAccountParams) (*models.Account, error) {
	p.HolderName = strings.TrimSpace(p.HolderName)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.HolderName == "" || p.Phone == "" {
		return nil, ErrInvalidHolder
	}
	if !p.Type.Valid() {
		return nil, ErrInvalidAccountType
	}
	if err := security.ValidatePIN(p.PIN); err != nil {
		return nil, err
	}
	if p.InitialDeposit.LessThan(s.policy.MinDeposit) {
		return nil, fmt.Errorf("%w: minimum opening deposit is %s", ErrBelowMinimum, s.policy.MinDeposit.StringFixed(2))
	}
	if p.InitialDeposit.GreaterThan(s.policy.MaxDeposit) {
		return nil, fmt.Errorf("%w: maximum opening deposit is %s", ErrAboveMaximum, s.policy.MaxDeposit.StringFixed(2))
	}

	number, err := s.newAccountNumber(ctx)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(number)
	defer unlock()

	now := s.clock.Now()
	acct := &models.Account{
		Number:            number,
		HolderName:        p.HolderName,
		PinDigest:         security.Digest(p.PIN),
		Phone:             p.Phone,
		Email:             strings.TrimSpace(p.Email),
		Type:              p.Type,
		Balance:           p.InitialDeposit,
		Status:            models.StatusActive,
		OpenedAt:          now,
		LastTransactionAt: now,
		DailyWithdrawn:    decimal.Zero,
	}
	if err := s.dir.Upsert(ctx, acct); err != nil {
		return nil, fmt.Errorf("unable to store new account: %w", err)
	}

	s.audit.Record(fmt.Sprintf("Account %s opened for %s (%s)", number, acct.HolderName, acct.Type))
	s.record(ctx, s.entry(ctx, acct, models.EntryDeposit, p.InitialDeposit, "", "Opening deposit"))

	zap.L().Info("Account opened",
		zap.String("account", number),
		zap.String("type", string(acct.Type)))
	return acct.Clone(), nil
}

func (s *Service) newAccountNumber(ctx context.Context) (string, error) {
	limit := big.NewInt(1_000_000_000_000)
	for i := 0; i < 10; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("unable to generate account number: %w", err)
		}
		number := fmt.Sprintf("%s%012d", accountPrefix, n.Int64())

		_, err = s.dir.Find(ctx, number)
		if errors.Is(err, store.ErrAccountNotFound) {
			return number, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", errors.New("unable to allocate a free account number")
}
