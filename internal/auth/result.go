package auth

import (
	"errors"
	"fmt"
)

// Denial reasons. They travel inside Result, not as returned errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountLocked       = errors.New("account locked")
	ErrUnderReview         = errors.New("account under review")
	ErrSuspiciousActivity  = errors.New("suspicious activity")
	ErrTooManyAttempts     = errors.New("too many attempts")
	ErrInvalidCredential   = errors.New("invalid credential")
	ErrStepUpRequired      = errors.New("step-up verification required")
	ErrInvalidSessionToken = errors.New("invalid session")
)

// Outcome of an authentication attempt
type Outcome int

const (
	Denied Outcome = iota
	Granted
	GrantedPendingChallenge
)

func (o Outcome) String() string {
	switch o {
	case Granted:
		return "granted"
	case GrantedPendingChallenge:
		return "granted_pending_challenge"
	default:
		return "denied"
	}
}

// Result is what the gate tells the caller about one attempt.
type Result struct {
	Outcome           Outcome
	Reason            error
	Token             string
	ChallengeHandle   string
	RemainingAttempts int
}

// Message is the text shown to the customer. It never carries internal detail.
func (r *Result) Message() string {
	switch r.Outcome {
	case Granted:
		return "Login successful"
	case GrantedPendingChallenge:
		return "Login successful. Enter the verification code sent to your registered phone"
	}
	return Reason(r.Reason, r.RemainingAttempts)
}

// Reason maps a denial or authorization error to its customer-facing text.
func Reason(err error, remaining int) string {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return "Account not found"
	case errors.Is(err, ErrAccountLocked):
		return "Account is locked. Please contact your branch"
	case errors.Is(err, ErrUnderReview):
		return "Account is under security review. Please contact your branch"
	case errors.Is(err, ErrSuspiciousActivity):
		return "Suspicious activity detected. Account flagged for review"
	case errors.Is(err, ErrTooManyAttempts):
		return "Too many attempts. Please try again later"
	case errors.Is(err, ErrInvalidCredential):
		if remaining <= 0 {
			return "Invalid PIN. Account locked after too many failed attempts"
		}
		return fmt.Sprintf("Invalid PIN. %d attempt(s) remaining", remaining)
	case errors.Is(err, ErrStepUpRequired):
		return "Additional verification required"
	case errors.Is(err, ErrInvalidSessionToken):
		return "Session is invalid or has expired. Please log in again"
	default:
		return "Request could not be completed"
	}
}

// StepUpError carries the handle of the challenge that must be completed.
type StepUpError struct {
	Handle string
}

func (e *StepUpError) Error() string { return ErrStepUpRequired.Error() }

func (e *StepUpError) Is(target error) bool { return target == ErrStepUpRequired }
