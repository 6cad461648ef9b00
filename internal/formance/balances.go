package formance

import (
	"context"
	"fmt"
	"math/big"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Balance returns the ledger-side balance of a customer account. It is the
// sum of posted entries and is used to reconcile against the directory.
func (s *Service) Balance(ctx context.Context, number string) (decimal.Decimal, error) {
	zap.L().Debug("Getting account balance from Formance", zap.String("account", number))

	vols, err := s.getAccountVolumes(ctx, customerAddress(number))
	if err != nil {
		return decimal.Zero, err
	}
	if bal := volumeBalance(vols, formanceAsset(Currency)); bal != nil {
		return bigIntToDecimal(bal, Currency), nil
	}
	return decimal.Zero, nil
}

// getAccountVolumes fetches volumes for a single account via GetAccount (clean GET).
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account volumes for %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in minor units to a decimal amount.
func bigIntToDecimal(raw *big.Int, currency string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(currency)))
}
