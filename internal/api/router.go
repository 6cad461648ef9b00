package api

import (
	"net/http"
	"time"

	"bank-terminal-go/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter builds the terminal's HTTP surface.
func NewRouter(s *TerminalService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(channelContext)

	r.Get("/health", s.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/accounts", s.OpenAccount)

		r.Post("/sessions", s.Login)
		r.Post("/sessions/challenge", s.CompleteChallenge)

		// logging out is allowed while a challenge is outstanding
		r.With(s.requireSession(readScope)).Delete("/sessions", s.Logout)

		r.Route("/accounts/me", func(r chi.Router) {
			r.Use(s.requireSession(scopeForMethod))

			r.Get("/", s.GetAccount)
			r.Delete("/", s.CloseAccount)
			r.Get("/transactions", s.ListTransactions)
			r.Post("/deposits", s.Deposit)
			r.Post("/withdrawals", s.Withdraw)
			r.Post("/transfers", s.Transfer)
			r.Post("/bills", s.PayBill)
			r.Put("/pin", s.ChangePIN)
			r.Post("/interest", s.ApplyInterest)
		})
	})

	return r
}

func readScope(*http.Request) auth.Scope {
	return auth.ScopeRead
}

func scopeForMethod(r *http.Request) auth.Scope {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return auth.ScopeRead
	}
	return auth.ScopeMutate
}
