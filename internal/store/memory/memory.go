// Package memory implements the account store in process memory. Used for
// development and as the test double; it mirrors the Redis key layout.
package memory

import (
	"context"
	"encoding/json"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

type Store struct {
	mu sync.Mutex
	c  *gocache.Cache
}

func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 0)}
}

func (s *Store) GetByID(ctx context.Context, id string) (*store.Account, error) {
	v, ok := s.c.Get(store.KeyAccount(id))
	if !ok {
		return nil, store.ErrNotFound
	}
	a := v.(store.Account)
	return &a, nil
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*store.Account, error) {
	return s.getByIndex(ctx, store.KeyUsername(username))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*store.Account, error) {
	return s.getByIndex(ctx, store.KeyEmail(email))
}

func (s *Store) GetByProviderIdentity(ctx context.Context, providerName, providerID string) (*store.Account, error) {
	return s.getByIndex(ctx, store.KeyProviderIdentity(providerName, providerID))
}

func (s *Store) getByIndex(ctx context.Context, idxKey string) (*store.Account, error) {
	v, ok := s.c.Get(idxKey)
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetByID(ctx, v.(string))
}

func (s *Store) Create(ctx context.Context, a *store.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.c.Set(store.KeyAccount(a.ID), *a, gocache.NoExpiration)
	if a.Email != "" {
		s.c.Set(store.KeyEmail(a.Email), a.ID, gocache.NoExpiration)
	}
	return nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, ok := s.c.Get(store.KeyUsername(username))
	return ok, nil
}

func (s *Store) ClaimUsername(ctx context.Context, username, accountID string) (bool, error) {
	// Add is insert-if-absent, which is the compare-and-set we need.
	err := s.c.Add(store.KeyUsername(username), accountID, gocache.NoExpiration)
	return err == nil, nil
}

func (s *Store) GetAuthMethod(ctx context.Context, accountID, providerName string) (*store.AuthMethod, error) {
	v, ok := s.c.Get(store.KeyAuthMethods(accountID))
	if !ok {
		return nil, store.ErrNotFound
	}
	methods := v.(map[string]string)
	raw, ok := methods[providerName]
	if !ok {
		return nil, store.ErrNotFound
	}
	var m store.AuthMethod
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) ListAuthMethods(ctx context.Context, accountID string) ([]store.AuthMethod, error) {
	v, ok := s.c.Get(store.KeyAuthMethods(accountID))
	if !ok {
		return nil, nil
	}
	methods := v.(map[string]string)
	out := make([]store.AuthMethod, 0, len(methods))
	for _, raw := range methods {
		var m store.AuthMethod
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (s *Store) PutAuthMethod(ctx context.Context, accountID string, m *store.AuthMethod) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	methods := map[string]string{}
	if v, ok := s.c.Get(store.KeyAuthMethods(accountID)); ok {
		for k, val := range v.(map[string]string) {
			methods[k] = val
		}
	}
	// A replaced provider id must not keep resolving to this account.
	if rawPrev, ok := methods[m.ProviderName]; ok {
		var prev store.AuthMethod
		if err := json.Unmarshal([]byte(rawPrev), &prev); err == nil && prev.ProviderID != m.ProviderID {
			s.c.Delete(store.KeyProviderIdentity(m.ProviderName, prev.ProviderID))
		}
	}
	methods[m.ProviderName] = string(raw)
	s.c.Set(store.KeyAuthMethods(accountID), methods, gocache.NoExpiration)
	s.c.Set(store.KeyProviderIdentity(m.ProviderName, m.ProviderID), accountID, gocache.NoExpiration)
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }
func (s *Store) Close() error                   { return nil }
