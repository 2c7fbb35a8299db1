// Package middleware provides the HTTP middleware chain: bearer
// authentication, role gating, CORS, and rate limiting.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/appstack-labs/marketplace/internal/apperr"
	"github.com/appstack-labs/marketplace/internal/auth"
	"github.com/appstack-labs/marketplace/internal/domain/account"
	"github.com/appstack-labs/marketplace/internal/httputil"
	"github.com/appstack-labs/marketplace/internal/storage"
)

type contextKey string

const accountKey contextKey = "account"

// Authenticator resolves bearer tokens to live accounts. Every request
// re-reads the account, so role changes and bans take effect on the
// next request rather than at token expiry.
type Authenticator struct {
	tokens   *auth.TokenIssuer
	accounts storage.AccountStore
	logger   *logrus.Logger
}

// NewAuthenticator builds the authentication middleware.
func NewAuthenticator(tokens *auth.TokenIssuer, accounts storage.AccountStore, logger *logrus.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, accounts: accounts, logger: logger}
}

// Require rejects requests without a valid token or with a banned
// account.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := a.resolve(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

// Optional attaches the account when a valid token is present but lets
// anonymous requests through.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		acct, err := a.resolve(r)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAccount(r.Context(), acct)))
	})
}

func (a *Authenticator) resolve(r *http.Request) (account.Account, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return account.Account{}, apperr.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return account.Account{}, apperr.Unauthorized("invalid authorization header")
	}

	accountID, err := a.tokens.Verify(parts[1])
	if err != nil {
		return account.Account{}, err
	}

	acct, err := a.accounts.GetAccount(r.Context(), accountID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return account.Account{}, apperr.Unauthorized("account no longer exists")
		}
		return account.Account{}, err
	}
	if acct.Banned {
		a.logger.WithField("account_id", acct.ID).Warn("Banned account rejected")
		return account.Account{}, apperr.Forbidden("account is banned")
	}
	return acct.Public(), nil
}

func withAccount(ctx context.Context, acct account.Account) context.Context {
	return context.WithValue(ctx, accountKey, acct)
}

// AccountFrom returns the authenticated account attached to ctx.
func AccountFrom(ctx context.Context) (account.Account, bool) {
	acct, ok := ctx.Value(accountKey).(account.Account)
	return acct, ok
}

// RequireRole gates a handler behind the allowed roles. It must run
// after Require.
func RequireRole(allowed ...account.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			acct, ok := AccountFrom(r.Context())
			if !ok {
				httputil.WriteError(w, apperr.Unauthorized("authentication required"))
				return
			}
			if !acct.Role.In(allowed...) {
				httputil.WriteError(w, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
