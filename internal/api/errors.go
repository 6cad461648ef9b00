package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/bank"
	"bank-terminal-go/internal/challenge"
	"bank-terminal-go/internal/security"
	"bank-terminal-go/internal/store"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error             string `json:"error"`
	ChallengeHandle   string `json:"challenge_handle,omitempty"`
	RemainingAttempts *int   `json:"remaining_attempts,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("Failed to encode response", zap.Error(err))
	}
}

// writeError maps a domain error to a status and customer-safe message.
// Anything unrecognised is logged and reported as a 500.
func writeError(w http.ResponseWriter, err error) {
	var stepUp *auth.StepUpError
	if errors.As(err, &stepUp) {
		writeJSON(w, http.StatusForbidden, errorResponse{
			Error:           auth.Reason(err, 0),
			ChallengeHandle: stepUp.Handle,
		})
		return
	}

	status, message := classify(err)
	if status == http.StatusInternalServerError {
		zap.L().Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidSessionToken):
		return http.StatusUnauthorized, auth.Reason(err, 0)
	case errors.Is(err, auth.ErrStepUpRequired),
		errors.Is(err, auth.ErrSuspiciousActivity):
		return http.StatusForbidden, auth.Reason(err, 0)

	case errors.Is(err, challenge.ErrCodeMismatch):
		return http.StatusUnauthorized, "Verification code is incorrect"
	case errors.Is(err, challenge.ErrChallengeExpired):
		return http.StatusUnauthorized, "Verification code has expired"
	case errors.Is(err, challenge.ErrNoPending):
		return http.StatusConflict, "No verification is pending"

	case errors.Is(err, bank.ErrInvalidPIN):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, bank.ErrAccountInactive):
		return http.StatusForbidden, "Account is not active"
	case errors.Is(err, bank.ErrRecipientNotFound),
		errors.Is(err, store.ErrAccountNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, bank.ErrInsufficientFunds),
		errors.Is(err, bank.ErrDailyLimit),
		errors.Is(err, bank.ErrNonZeroBalance):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, bank.ErrInvalidAmount),
		errors.Is(err, bank.ErrBelowMinimum),
		errors.Is(err, bank.ErrAboveMaximum),
		errors.Is(err, bank.ErrSavingsLimit),
		errors.Is(err, bank.ErrSelfTransfer),
		errors.Is(err, bank.ErrNotSavings),
		errors.Is(err, bank.ErrSamePIN),
		errors.Is(err, bank.ErrInvalidBillType),
		errors.Is(err, bank.ErrMissingReference),
		errors.Is(err, bank.ErrInvalidHolder),
		errors.Is(err, bank.ErrInvalidAccountType),
		errors.Is(err, security.ErrPINFormat),
		errors.Is(err, security.ErrPINWeak):
		return http.StatusBadRequest, err.Error()
	}
	return http.StatusInternalServerError, "Request could not be completed"
}

// loginStatus picks the status for a denied login.
func loginStatus(reason error) int {
	switch {
	case errors.Is(reason, auth.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(reason, auth.ErrAccountLocked),
		errors.Is(reason, auth.ErrUnderReview),
		errors.Is(reason, auth.ErrSuspiciousActivity):
		return http.StatusForbidden
	}
	return http.StatusUnauthorized
}
