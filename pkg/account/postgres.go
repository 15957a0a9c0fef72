package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/whatsub/identity-core/pkg/clients/postgres"
	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// pgUniqueViolation is the PostgreSQL error code for a unique constraint
// violation.
const pgUniqueViolation = "23505"

// Schema creates the accounts table. Applied at startup by the server;
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	display_name TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	external_id  TEXT UNIQUE,
	role         TEXT NOT NULL DEFAULT 'user',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore is the durable [Store]. The unique constraints on email
// and external_id are the only concurrency primitive: concurrent creates
// for the same identity collide there and the resolver converges on the
// surviving row.
type PostgresStore struct {
	client *postgres.Client
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps a connected postgres client.
func NewPostgresStore(client *postgres.Client) *PostgresStore {
	return &PostgresStore{client: client}
}

// EnsureSchema applies [Schema].
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.client.Exec(ctx, Schema)
	return err
}

const accountColumns = "id, email, display_name, phone, COALESCE(external_id, ''), role, created_at"

func scanAccount(row pgx.Row) (*Account, error) {
	var acct Account
	err := row.Scan(&acct.ID, &acct.Email, &acct.DisplayName, &acct.Phone,
		&acct.ExternalID, &acct.Role, &acct.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Account, error) {
	row := s.client.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, scanError(err, "account not found")
	}
	return acct, nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (*Account, error) {
	row := s.client.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE external_id = $1", externalID)
	acct, err := scanAccount(row)
	if err != nil {
		return nil, scanError(err, "no account bound to external identity")
	}
	return acct, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.client.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", NormalizeEmail(email))
	acct, err := scanAccount(row)
	if err != nil {
		return nil, scanError(err, "no account with that email")
	}
	return acct, nil
}

func (s *PostgresStore) Create(ctx context.Context, acct *Account) (*Account, error) {
	stored := acct.Clone()
	stored.Email = NormalizeEmail(stored.Email)

	// An empty external_id is stored as NULL so the unique constraint
	// only applies to real bindings.
	row := s.client.QueryRow(ctx, `
		INSERT INTO accounts (id, email, display_name, phone, external_id, role, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
		RETURNING `+accountColumns,
		stored.ID, stored.Email, stored.DisplayName, stored.Phone,
		stored.ExternalID, string(stored.Role), stored.CreatedAt)

	created, err := scanAccount(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, iderr.Wrap(err, iderr.CodeConflictDuplicateKey,
				"email or external identity already in use")
		}
		return nil, iderr.Wrap(err, iderr.CodeInternalDatabase,
			"failed to create account")
	}
	return created, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, upd Update) (*Account, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	set := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if upd.Email != nil {
		args = append(args, NormalizeEmail(*upd.Email))
		set = append(set, fmt.Sprintf("email = $%d", len(args)))
	}
	if upd.DisplayName != nil {
		args = append(args, *upd.DisplayName)
		set = append(set, fmt.Sprintf("display_name = $%d", len(args)))
	}
	if upd.Phone != nil {
		args = append(args, *upd.Phone)
		set = append(set, fmt.Sprintf("phone = $%d", len(args)))
	}
	if len(set) == 0 {
		return s.FindByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE accounts SET %s WHERE id = $%d RETURNING %s",
		strings.Join(set, ", "), len(args), accountColumns)

	acct, err := scanAccount(s.client.QueryRow(ctx, query, args...))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, iderr.Wrap(err, iderr.CodeConflictDuplicateKey,
				"email already in use")
		}
		return nil, scanError(err, "account not found")
	}
	return acct, nil
}

func (s *PostgresStore) SetExternalID(ctx context.Context, id, externalID string) (*Account, error) {
	// An empty external_id is stored as NULL on create; writing '' here
	// would put two unlinked accounts on the unique index.
	if externalID == "" {
		return nil, iderr.New(iderr.CodeValidationRequired,
			"external identity must not be empty")
	}

	// Only an unbound account (or one already bound to this identity)
	// may be linked. The WHERE clause makes the check-and-set atomic.
	row := s.client.QueryRow(ctx, `
		UPDATE accounts SET external_id = $2
		WHERE id = $1 AND (external_id IS NULL OR external_id = $2)
		RETURNING `+accountColumns,
		id, externalID)

	acct, err := scanAccount(row)
	if err == nil {
		return acct, nil
	}
	if isUniqueViolation(err) {
		return nil, iderr.Wrap(err, iderr.CodeConflictDuplicateKey,
			"external identity already bound to another account")
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, iderr.Wrap(err, iderr.CodeInternalDatabase,
			"failed to link external identity")
	}

	// No row matched: either the account is missing or it is bound to a
	// different identity. Distinguish for the caller's logs.
	if _, findErr := s.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, iderr.New(iderr.CodeConflict,
		"account already bound to a different external identity")
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.client.Exec(ctx, "DELETE FROM accounts WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return iderr.Newf(iderr.CodeNotFoundAccount, "account %q not found", id)
	}
	return nil
}

func (s *PostgresStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

// scanError maps a row-scan failure onto the error taxonomy.
func scanError(err error, notFoundMsg string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return iderr.New(iderr.CodeNotFoundAccount, notFoundMsg)
	}
	var idError *iderr.Error
	if errors.As(err, &idError) {
		return idError
	}
	return iderr.Wrap(err, iderr.CodeInternalDatabase, "account query failed")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
