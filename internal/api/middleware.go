package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"bank-terminal-go/internal/auth"
	"bank-terminal-go/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// HeaderAccount carries the account number the bearer token was issued for.
const HeaderAccount = "X-Account-Number"

type accountKey struct{}

type credentials struct {
	account string
	token   string
}

func credentialsFrom(r *http.Request) credentials {
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	return credentials{
		account: strings.TrimSpace(r.Header.Get(HeaderAccount)),
		token:   token,
	}
}

// requireSession authorizes the request's session for the scope the route
// needs and stores the account number in the request context.
func (s *TerminalService) requireSession(scope func(*http.Request) auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := credentialsFrom(r)
			if creds.account == "" || creds.token == "" {
				writeError(w, auth.ErrInvalidSessionToken)
				return
			}
			if err := s.gate.Authorize(r.Context(), creds.account, creds.token, scope(r)); err != nil {
				writeError(w, err)
				return
			}
			ctx := context.WithValue(r.Context(), accountKey{}, creds.account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accountFromContext(ctx context.Context) string {
	number, _ := ctx.Value(accountKey{}).(string)
	return number
}

// channelContext tags operations started over HTTP so ledger entries and
// audit lines record where they came from.
func channelContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := models.WithChannelContext(r.Context(), &models.ChannelContext{
			Channel:    "http",
			RemoteAddr: r.RemoteAddr,
			RequestId:  middleware.GetReqID(r.Context()),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
