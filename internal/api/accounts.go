package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"bank-terminal-go/internal/bank"
	"bank-terminal-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// AccountView is the customer-visible projection of an account.
type AccountView struct {
	Number      string               `json:"account_number"`
	HolderName  string               `json:"holder_name"`
	Type        models.AccountType   `json:"account_type"`
	Balance     decimal.Decimal      `json:"balance"`
	Status      models.AccountStatus `json:"status"`
	OpenedAt    time.Time            `json:"opened_at"`
	LastLoginAt *time.Time           `json:"last_login_at,omitempty"`
}

func viewOf(acct *models.Account) AccountView {
	v := AccountView{
		Number:     acct.Number,
		HolderName: acct.HolderName,
		Type:       acct.Type,
		Balance:    acct.Balance,
		Status:     acct.Status,
		OpenedAt:   acct.OpenedAt,
	}
	if !acct.LastLoginAt.IsZero() {
		t := acct.LastLoginAt
		v.LastLoginAt = &t
	}
	return v
}

type openAccountRequest struct {
	HolderName     string             `json:"holder_name"`
	Phone          string             `json:"phone"`
	Email          string             `json:"email"`
	Type           models.AccountType `json:"account_type"`
	PIN            string             `json:"pin"`
	InitialDeposit decimal.Decimal    `json:"initial_deposit"`
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

type billRequest struct {
	BillType  bank.BillType   `json:"bill_type"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

type changePINRequest struct {
	CurrentPIN string `json:"current_pin"`
	NewPIN     string `json:"new_pin"`
}

type closeAccountRequest struct {
	PIN string `json:"pin"`
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body"})
		return false
	}
	return true
}

func (s *TerminalService) OpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if !decode(w, r, &req) {
		return
	}

	acct, err := s.bank.OpenAccount(r.Context(), bank.OpenAccountParams{
		HolderName:     req.HolderName,
		Phone:          req.Phone,
		Email:          req.Email,
		Type:           req.Type,
		PIN:            req.PIN,
		InitialDeposit: req.InitialDeposit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(acct))
}

func (s *TerminalService) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.bank.Account(r.Context(), accountFromContext(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(acct))
}

// ListTransactions returns recent ledger entries, newest first.
func (s *TerminalService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, 100)
	}

	entries, err := s.bank.History(r.Context(), accountFromContext(r.Context()), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *TerminalService) Deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := s.bank.Deposit(r.Context(), accountFromContext(r.Context()), req.Amount)
	s.writeEntry(w, entry, err)
}

func (s *TerminalService) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := s.bank.Withdraw(r.Context(), accountFromContext(r.Context()), req.Amount)
	s.writeEntry(w, entry, err)
}

func (s *TerminalService) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := s.bank.Transfer(r.Context(), accountFromContext(r.Context()), req.To, req.Amount)
	s.writeEntry(w, entry, err)
}

func (s *TerminalService) PayBill(w http.ResponseWriter, r *http.Request) {
	var req billRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := s.bank.PayBill(r.Context(), accountFromContext(r.Context()), req.BillType, req.Reference, req.Amount)
	s.writeEntry(w, entry, err)
}

func (s *TerminalService) ApplyInterest(w http.ResponseWriter, r *http.Request) {
	entry, err := s.bank.ApplyInterest(r.Context(), accountFromContext(r.Context()))
	if err == nil && entry == nil {
		writeJSON(w, http.StatusOK, map[string]string{"message": "No interest due"})
		return
	}
	s.writeEntry(w, entry, err)
}

func (s *TerminalService) ChangePIN(w http.ResponseWriter, r *http.Request) {
	var req changePINRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.bank.ChangePIN(r.Context(), accountFromContext(r.Context()), req.CurrentPIN, req.NewPIN); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN changed"})
}

// CloseAccount removes the account and ends its session.
func (s *TerminalService) CloseAccount(w http.ResponseWriter, r *http.Request) {
	var req closeAccountRequest
	if !decode(w, r, &req) {
		return
	}
	number := accountFromContext(r.Context())
	if err := s.bank.CloseAccount(r.Context(), number, req.PIN); err != nil {
		writeError(w, err)
		return
	}
	if err := s.gate.Logout(r.Context(), number); err != nil {
		zap.L().Warn("Failed to end session after closure", zap.String("account", number), zap.Error(err))
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *TerminalService) writeEntry(w http.ResponseWriter, entry *models.LedgerEntry, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
