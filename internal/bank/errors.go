package bank

import "errors"

var (
	ErrInvalidAmount      = errors.New("amount must be positive")
	ErrBelowMinimum       = errors.New("amount below minimum")
	ErrAboveMaximum       = errors.New("amount above maximum")
	ErrSavingsLimit       = errors.New("amount exceeds savings account transaction limit")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrDailyLimit         = errors.New("daily withdrawal limit exceeded")
	ErrSelfTransfer       = errors.New("cannot transfer to the same account")
	ErrRecipientNotFound  = errors.New("recipient account not found")
	ErrAccountInactive    = errors.New("account is not active")
	ErrNotSavings         = errors.New("interest applies to savings accounts only")
	ErrNonZeroBalance     = errors.New("account balance must be zero to close")
	ErrInvalidPIN         = errors.New("current PIN is incorrect")
	ErrSamePIN            = errors.New("new PIN must differ from current PIN")
	ErrInvalidBillType    = errors.New("unknown bill type")
	ErrMissingReference   = errors.New("bill reference is required")
	ErrInvalidHolder      = errors.New("account holder details are incomplete")
	ErrInvalidAccountType = errors.New("account type must be SAVINGS or CURRENT")
)
