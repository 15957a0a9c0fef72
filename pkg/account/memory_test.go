package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

func mustCreate(t *testing.T, s Store, email, displayName, externalID string) *Account {
	t.Helper()

	acct, err := New(email, displayName, externalID)
	require.NoError(t, err)

	created, err := s.Create(context.Background(), acct)
	require.NoError(t, err)
	return created
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	created := mustCreate(t, s, "alice@example.com", "Alice", "g-123")

	byID, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Email, byID.Email)

	byExt, err := s.FindByExternalID(ctx, "g-123")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byExt.ID)

	byEmail, err := s.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestMemoryStoreFindMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.FindByID(ctx, "nope")
	assert.True(t, iderr.IsNotFound(err))

	_, err = s.FindByExternalID(ctx, "nope")
	assert.True(t, iderr.IsNotFound(err))

	_, err = s.FindByEmail(ctx, "nope@example.com")
	assert.True(t, iderr.IsNotFound(err))
}

func TestMemoryStoreCreateDuplicateEmail(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	mustCreate(t, s, "alice@example.com", "Alice", "g-1")

	dup, err := New("Alice@Example.com", "Other Alice", "g-2")
	require.NoError(t, err)

	_, err = s.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestMemoryStoreCreateDuplicateExternalID(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	mustCreate(t, s, "alice@example.com", "Alice", "g-1")

	dup, err := New("other@example.com", "Other", "g-1")
	require.NoError(t, err)

	_, err = s.Create(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestMemoryStoreUpdate(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, s, "alice@example.com", "Alice", "")

	newEmail := "Alice2@Example.com"
	newName := "Alice Two"
	newPhone := "+15551234567"

	updated, err := s.Update(ctx, created.ID, Update{
		Email:       &newEmail,
		DisplayName: &newName,
		Phone:       &newPhone,
	})
	require.NoError(t, err)
	assert.Equal(t, "alice2@example.com", updated.Email)
	assert.Equal(t, "Alice Two", updated.DisplayName)
	assert.Equal(t, "+15551234567", updated.Phone)

	// Old email is released, new one is indexed.
	_, err = s.FindByEmail(ctx, "alice@example.com")
	assert.True(t, iderr.IsNotFound(err))
	found, err := s.FindByEmail(ctx, "alice2@example.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
}

func TestMemoryStoreUpdateEmailTaken(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	mustCreate(t, s, "alice@example.com", "Alice", "")
	bob := mustCreate(t, s, "bob@example.com", "Bob", "")

	taken := "alice@example.com"
	_, err := s.Update(context.Background(), bob.ID, Update{Email: &taken})
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	name := "X"
	_, err := s.Update(context.Background(), "nope", Update{DisplayName: &name})
	assert.True(t, iderr.IsNotFound(err))
}

func TestMemoryStoreSetExternalID(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, s, "alice@example.com", "Alice", "")

	linked, err := s.SetExternalID(ctx, created.ID, "g-123")
	require.NoError(t, err)
	assert.Equal(t, "g-123", linked.ExternalID)

	// Idempotent for the same identity.
	again, err := s.SetExternalID(ctx, created.ID, "g-123")
	require.NoError(t, err)
	assert.Equal(t, "g-123", again.ExternalID)

	// A different identity on an already-bound account is a conflict.
	_, err = s.SetExternalID(ctx, created.ID, "g-456")
	require.Error(t, err)
	assert.True(t, iderr.IsConflict(err))
}

func TestMemoryStoreSetExternalIDTaken(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	mustCreate(t, s, "alice@example.com", "Alice", "g-123")
	bob := mustCreate(t, s, "bob@example.com", "Bob", "")

	_, err := s.SetExternalID(ctx, bob.ID, "g-123")
	require.Error(t, err)
	assert.True(t, iderr.IsDuplicateKey(err))
}

func TestMemoryStoreSetExternalIDEmpty(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, s, "alice@example.com", "Alice", "")

	// Two unlinked accounts must never collide on an empty binding.
	_, err := s.SetExternalID(ctx, created.ID, "")
	require.Error(t, err)
	assert.True(t, iderr.IsValidation(err))
}

func TestMemoryStoreDelete(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, s, "alice@example.com", "Alice", "g-123")

	require.NoError(t, s.Delete(ctx, created.ID))

	_, err := s.FindByID(ctx, created.ID)
	assert.True(t, iderr.IsNotFound(err))
	_, err = s.FindByEmail(ctx, "alice@example.com")
	assert.True(t, iderr.IsNotFound(err))
	_, err = s.FindByExternalID(ctx, "g-123")
	assert.True(t, iderr.IsNotFound(err))

	// Terminal: deleting again reports not found.
	assert.True(t, iderr.IsNotFound(s.Delete(ctx, created.ID)))
}

func TestMemoryStoreCloneIsolation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	created := mustCreate(t, s, "alice@example.com", "Alice", "")

	created.Email = "mutated@example.com"

	stored, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", stored.Email)
}
