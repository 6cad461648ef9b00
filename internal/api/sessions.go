package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"bank-terminal-go/internal/auth"
)

type loginRequest struct {
	AccountNumber string `json:"account_number"`
	PIN           string `json:"pin"`
}

type loginResponse struct {
	Outcome         string `json:"outcome"`
	Message         string `json:"message"`
	Token           string `json:"token"`
	ChallengeHandle string `json:"challenge_handle,omitempty"`
}

type challengeRequest struct {
	Code string `json:"code"`
}

func (s *TerminalService) Health(w http.ResponseWriter, r *http.Request) {
	if err := s.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Login runs one authentication attempt.
func (s *TerminalService) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountNumber == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	res, err := s.gate.Authenticate(r.Context(), req.AccountNumber, req.PIN)
	if err != nil {
		writeError(w, err)
		return
	}

	switch res.Outcome {
	case auth.Granted:
		writeJSON(w, http.StatusCreated, loginResponse{
			Outcome: res.Outcome.String(),
			Message: res.Message(),
			Token:   res.Token,
		})
	case auth.GrantedPendingChallenge:
		writeJSON(w, http.StatusAccepted, loginResponse{
			Outcome:         res.Outcome.String(),
			Message:         res.Message(),
			Token:           res.Token,
			ChallengeHandle: res.ChallengeHandle,
		})
	default:
		body := errorResponse{Error: res.Message()}
		if errors.Is(res.Reason, auth.ErrInvalidCredential) {
			remaining := res.RemainingAttempts
			body.RemainingAttempts = &remaining
		}
		writeJSON(w, loginStatus(res.Reason), body)
	}
}

// CompleteChallenge submits the step-up code for the session in the headers.
func (s *TerminalService) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	creds := credentialsFrom(r)
	if creds.account == "" || creds.token == "" {
		writeError(w, auth.ErrInvalidSessionToken)
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return
	}

	if err := s.gate.CompleteChallenge(r.Context(), creds.account, creds.token, req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Verification successful"})
}

func (s *TerminalService) Logout(w http.ResponseWriter, r *http.Request) {
	if err := s.gate.Logout(r.Context(), accountFromContext(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
