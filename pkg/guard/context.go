package guard

import (
	"context"

	"github.com/whatsub/identity-core/pkg/account"
)

// contextKey is an unexported type for this package's context keys,
// preventing collisions with keys from other packages.
type contextKey int

const accountKey contextKey = iota

// ContextWithAccount returns a new context with the authenticated account
// attached. Called by the HTTP middleware and gRPC interceptors after a
// successful [Guard.Authenticate].
func ContextWithAccount(ctx context.Context, acct *account.Account) context.Context {
	return context.WithValue(ctx, accountKey, acct)
}

// AccountFromContext retrieves the authenticated account from the context.
// Returns nil and false if no account has been set.
func AccountFromContext(ctx context.Context) (*account.Account, bool) {
	acct, ok := ctx.Value(accountKey).(*account.Account)
	return acct, ok
}

// MustAccountFromContext retrieves the authenticated account, panicking if
// none is present. Only for handlers that are always registered behind the
// authentication middleware.
func MustAccountFromContext(ctx context.Context) *account.Account {
	acct, ok := AccountFromContext(ctx)
	if !ok {
		panic("guard: no account in context; ensure authentication middleware is configured")
	}
	return acct
}
