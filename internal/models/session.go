package models

import "time"

// StepUpState tracks whether a session still owes a verification challenge
type StepUpState string

const (
	StepUpNone     StepUpState = ""
	StepUpPending  StepUpState = "PENDING"
	StepUpVerified StepUpState = "VERIFIED"
)

// Session is the single live login for an account
type Session struct {
	AccountNumber string      `json:"account_number"`
	Token         string      `json:"token"`
	CreatedAt     time.Time   `json:"created_at"`
	LastActivity  time.Time   `json:"last_activity"`
	StepUp        StepUpState `json:"step_up,omitempty"`
}

// PendingChallenge is an outstanding one-time code for an account
type PendingChallenge struct {
	Handle        string
	AccountNumber string
	Code          string
	ExpiresAt     time.Time
}

// ChallengeDelivery is the payload handed to a delivery gateway
type ChallengeDelivery struct {
	Handle        string    `json:"handle"`
	AccountNumber string    `json:"account_number"`
	Destination   string    `json:"destination"`
	Code          string    `json:"code"`
	IssuedAt      time.Time `json:"issued_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}
