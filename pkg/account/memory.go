package account

import (
	"context"
	"sync"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

// MemoryStore is a map-backed [Store] with secondary indexes on email and
// external identity ID. A single mutex serializes all operations, which
// makes the check-then-write uniqueness enforcement atomic the same way
// the database constraints are in [PostgresStore].
//
// Accounts are copied on the way in and out, so callers can never mutate
// stored state through a returned pointer.
type MemoryStore struct {
	mu         sync.RWMutex
	byID       map[string]*Account
	byEmail    map[string]string
	byExternal map[string]string
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:       make(map[string]*Account),
		byEmail:    make(map[string]string),
		byExternal: make(map[string]string),
	}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, iderr.Newf(iderr.CodeNotFoundAccount, "account %q not found", id)
	}
	return acct.Clone(), nil
}

func (s *MemoryStore) FindByExternalID(ctx context.Context, externalID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, iderr.New(iderr.CodeNotFoundAccount,
			"no account bound to external identity")
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[NormalizeEmail(email)]
	if !ok {
		return nil, iderr.New(iderr.CodeNotFoundAccount, "no account with that email")
	}
	return s.byID[id].Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, acct *Account) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := acct.Clone()
	stored.Email = NormalizeEmail(stored.Email)

	if _, exists := s.byID[stored.ID]; exists {
		return nil, iderr.Newf(iderr.CodeConflictDuplicateKey,
			"account ID %q already exists", stored.ID)
	}
	if _, exists := s.byEmail[stored.Email]; exists {
		return nil, iderr.New(iderr.CodeConflictDuplicateKey,
			"email already in use")
	}
	if stored.ExternalID != "" {
		if _, exists := s.byExternal[stored.ExternalID]; exists {
			return nil, iderr.New(iderr.CodeConflictDuplicateKey,
				"external identity already bound")
		}
	}

	s.byID[stored.ID] = stored
	s.byEmail[stored.Email] = stored.ID
	if stored.ExternalID != "" {
		s.byExternal[stored.ExternalID] = stored.ID
	}
	return stored.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, upd Update) (*Account, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, iderr.Newf(iderr.CodeNotFoundAccount, "account %q not found", id)
	}

	if upd.Email != nil {
		email := NormalizeEmail(*upd.Email)
		if owner, exists := s.byEmail[email]; exists && owner != id {
			return nil, iderr.New(iderr.CodeConflictDuplicateKey,
				"email already in use")
		}
		delete(s.byEmail, acct.Email)
		acct.Email = email
		s.byEmail[email] = id
	}
	if upd.DisplayName != nil {
		acct.DisplayName = *upd.DisplayName
	}
	if upd.Phone != nil {
		acct.Phone = *upd.Phone
	}

	return acct.Clone(), nil
}

func (s *MemoryStore) SetExternalID(ctx context.Context, id, externalID string) (*Account, error) {
	if externalID == "" {
		return nil, iderr.New(iderr.CodeValidationRequired,
			"external identity must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return nil, iderr.Newf(iderr.CodeNotFoundAccount, "account %q not found", id)
	}

	if acct.ExternalID == externalID {
		return acct.Clone(), nil
	}
	if acct.ExternalID != "" {
		return nil, iderr.New(iderr.CodeConflict,
			"account already bound to a different external identity")
	}
	if owner, exists := s.byExternal[externalID]; exists && owner != id {
		return nil, iderr.New(iderr.CodeConflictDuplicateKey,
			"external identity already bound to another account")
	}

	acct.ExternalID = externalID
	s.byExternal[externalID] = id
	return acct.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.byID[id]
	if !ok {
		return iderr.Newf(iderr.CodeNotFoundAccount, "account %q not found", id)
	}

	delete(s.byID, id)
	delete(s.byEmail, acct.Email)
	if acct.ExternalID != "" {
		delete(s.byExternal, acct.ExternalID)
	}
	return nil
}

func (s *MemoryStore) Health(ctx context.Context) error {
	return nil
}

// Len reports the number of stored accounts. Used by convergence tests.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
