// Package account holds the canonical identity records and the
// resolve-or-create algorithm that maps an external identity onto exactly
// one of them.
//
// An [Account] is the internal record; a [Store] persists accounts with
// uniqueness guarantees on email and external identity ID; the [Resolver]
// turns verified external claims into an account, linking or creating as
// needed. Two Store implementations exist: [MemoryStore] for tests and
// explicitly configured non-durable deployments, and [PostgresStore] for
// production.
package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// Role determines what an account may do beyond self-service operations.
// Resolution always assigns [RoleUser]; admin assignment is a privileged
// operation outside this service.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is a recognized value.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is the canonical internal identity record.
//
// ID is generated at creation and never changes. Email is unique across
// all accounts; ExternalID, when set, binds the account to exactly one
// external provider subject and is also unique.
type Account struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"full_name,omitempty"`
	Phone       string    `json:"primary_phone,omitempty"`
	ExternalID  string    `json:"-"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// New builds an account with a fresh ID, role user, and the email
// normalized to lower case. When displayName is empty the local part of
// the email is used, matching what an external provider would show.
func New(email, displayName, externalID string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return nil, iderr.New(iderr.CodeValidationMissingEmail,
			"account: email must not be empty")
	}
	if displayName == "" {
		if at := strings.Index(email, "@"); at > 0 {
			displayName = email[:at]
		} else {
			displayName = email
		}
	}

	return &Account{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName,
		ExternalID:  externalID,
		Role:        RoleUser,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// NormalizeEmail lowercases and trims an email so uniqueness checks are
// case-insensitive. Both store implementations apply it on every email
// they receive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Clone returns a copy so store internals never alias caller-held
// records.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}

// Update carries the self-service mutable fields. Nil pointers leave the
// field untouched. Role is deliberately absent: the update path must
// never escalate privileges.
type Update struct {
	Email       *string
	DisplayName *string
	Phone       *string
}

// Validate checks the populated fields.
func (u *Update) Validate() error {
	if u.Email != nil {
		email := NormalizeEmail(*u.Email)
		if email == "" || !strings.Contains(email, "@") {
			return iderr.New(iderr.CodeValidationFormat,
				"account: email has an invalid format")
		}
	}
	return nil
}
