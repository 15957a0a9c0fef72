//go:build integration

// Integration tests exercising PostgresStore against a real PostgreSQL
// instance, gated behind the "integration" build tag.
//
// Run locally with:
//
//	go test -v -race -tags=integration ./pkg/account/...
package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whatsub/identity-core/internal/testutil"
	"github.com/whatsub/identity-core/internal/testutil/containers"
	"github.com/whatsub/identity-core/pkg/account"
	"github.com/whatsub/identity-core/pkg/clients/postgres"
	iderr "github.com/whatsub/identity-core/pkg/errors"
)

func setupStore(t *testing.T) *account.PostgresStore {
	t.Helper()

	ctx := context.Background()

	result, err := containers.StartPostgres(ctx)
	require.NoError(t, err)
	t.Cleanup(func() {
		if termErr := result.Container.Terminate(ctx); termErr != nil {
			t.Logf("failed to terminate postgres container: %v", termErr)
		}
	})

	client, err := postgres.NewClient(ctx, postgres.Config{URI: result.ConnString, MaxConns: 5, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	store := account.NewPostgresStore(client)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func create(t *testing.T, store *account.PostgresStore, email, name, externalID string) *account.Account {
	t.Helper()

	acct, err := account.New(email, name, externalID)
	require.NoError(t, err)
	created, err := store.Create(context.Background(), acct)
	require.NoError(t, err)
	return created
}

func TestIntegrationCreateAndFind(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created := create(t, store, "Alice@X.com", "Alice", "g-123")
	assert.Equal(t, "alice@x.com", created.Email)

	byID, err := store.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	byExternal, err := store.FindByExternalID(ctx, "g-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byExternal.ID)

	byEmail, err := store.FindByEmail(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestIntegrationUniqueConstraints(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	create(t, store, "alice@x.com", "Alice", "g-123")

	dupEmail, err := account.New("alice@x.com", "Other", "g-456")
	require.NoError(t, err)
	_, err = store.Create(ctx, dupEmail)
	testutil.RequireErrorCode(t, err, iderr.CodeConflictDuplicateKey)

	dupExternal, err := account.New("bob@x.com", "Bob", "g-123")
	require.NoError(t, err)
	_, err = store.Create(ctx, dupExternal)
	testutil.RequireErrorCode(t, err, iderr.CodeConflictDuplicateKey)
}

func TestIntegrationEmptyExternalIDNotUnique(t *testing.T) {
	store := setupStore(t)

	// Accounts without a federated identity store NULL, which the unique
	// constraint ignores, so any number of them can coexist.
	create(t, store, "alice@x.com", "Alice", "")
	create(t, store, "bob@x.com", "Bob", "")
}

func TestIntegrationSetExternalID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	acct := create(t, store, "alice@x.com", "Alice", "")

	linked, err := store.SetExternalID(ctx, acct.ID, "g-123")
	require.NoError(t, err)
	assert.Equal(t, "g-123", linked.ExternalID)

	// Idempotent for the same identity.
	again, err := store.SetExternalID(ctx, acct.ID, "g-123")
	require.NoError(t, err)
	assert.Equal(t, "g-123", again.ExternalID)

	// Rebinding to a different identity is refused.
	_, err = store.SetExternalID(ctx, acct.ID, "g-456")
	require.Error(t, err)
	assert.True(t, iderr.IsConflict(err))

	// Binding another account to the taken identity trips the unique
	// constraint.
	other := create(t, store, "bob@x.com", "Bob", "")
	_, err = store.SetExternalID(ctx, other.ID, "g-123")
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestIntegrationUpdate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	acct := create(t, store, "alice@x.com", "Alice", "g-123")

	name := "Alice B"
	phone := "+15550100"
	updated, err := store.Update(ctx, acct.ID, account.Update{DisplayName: &name, Phone: &phone})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", updated.DisplayName)
	assert.Equal(t, "+15550100", updated.Phone)
	assert.Equal(t, acct.Email, updated.Email)

	taken := create(t, store, "bob@x.com", "Bob", "")
	email := "alice@x.com"
	_, err = store.Update(ctx, taken.ID, account.Update{Email: &email})
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestIntegrationDelete(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	acct := create(t, store, "alice@x.com", "Alice", "g-123")

	require.NoError(t, store.Delete(ctx, acct.ID))

	_, err := store.FindByID(ctx, acct.ID)
	assert.True(t, iderr.IsNotFound(err))
	_, err = store.FindByExternalID(ctx, "g-123")
	assert.True(t, iderr.IsNotFound(err))

	err = store.Delete(ctx, acct.ID)
	require.Error(t, err)
	assert.True(t, iderr.IsNotFound(err))
}

func TestIntegrationResolverFlow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	r := account.NewResolver(store, nil)
	claims := account.Claims{
		ExternalID:    "g-123",
		Email:         "alice@x.com",
		DisplayName:   "Alice",
		EmailVerified: true,
	}

	acct, isNew, err := r.ResolveOrCreate(ctx, claims)
	require.NoError(t, err)
	assert.True(t, isNew)

	again, isNew, err := r.ResolveOrCreate(ctx, claims)
	require.NoError(t, err)
	assert.False(t, isNew)
	assert.Equal(t, acct.ID, again.ID)
}
