package account

import "context"

// Store persists accounts. Implementations must enforce uniqueness of
// email and external identity ID atomically; that constraint is the only
// serialization primitive the resolver relies on under concurrent logins.
//
// Lookups return [iderr.CodeNotFoundAccount] when no account matches.
// Create and SetExternalID return [iderr.CodeConflictDuplicateKey] on a
// uniqueness violation.
type Store interface {
	// FindByID returns the account with the given ID.
	FindByID(ctx context.Context, id string) (*Account, error)

	// FindByExternalID returns the account bound to the given external
	// identity subject.
	FindByExternalID(ctx context.Context, externalID string) (*Account, error)

	// FindByEmail returns the account with the given email. The email is
	// normalized before comparison.
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// Create persists a new account.
	Create(ctx context.Context, acct *Account) (*Account, error)

	// Update applies the populated fields and returns the updated record.
	Update(ctx context.Context, id string, upd Update) (*Account, error)

	// SetExternalID binds an external identity to an existing account.
	// It fails with a duplicate-key error when another account already
	// owns the external ID, and with a conflict when the account is
	// already bound to a different one.
	SetExternalID(ctx context.Context, id, externalID string) (*Account, error)

	// Delete removes the account. Subsequent lookups return not found.
	Delete(ctx context.Context, id string) error

	// Health reports whether the store is reachable.
	Health(ctx context.Context) error
}
