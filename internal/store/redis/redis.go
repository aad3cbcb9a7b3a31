// Package redis implements the account store on Redis, the primary backend.
// Records are hashes, indexes are plain string keys holding the account id,
// and the username claim is a SETNX so provisioning races lose cleanly.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

type Store struct {
	rdb    *goredis.Client
	prefix string
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New connects to Redis and verifies the connection.
func New(cfg Config) (*Store, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: ping: %w", err)
	}

	return &Store{rdb: rdb, prefix: cfg.Prefix}, nil
}

func (s *Store) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

func (s *Store) GetByID(ctx context.Context, id string) (*store.Account, error) {
	m, err := s.rdb.HGetAll(ctx, s.key(store.KeyAccount(id))).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, store.ErrNotFound
	}
	return accountFromHash(id, m), nil
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
	id, err := s.rdb.Get(ctx, s.key(idxKey)).Result()
	if err == goredis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *Store) Create(ctx context.Context, a *store.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, s.key(store.KeyAccount(a.ID)), accountToHash(a))
	if a.Email != "" {
		pipe.Set(ctx, s.key(store.KeyEmail(a.Email)), a.ID, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: create account: %w", err)
	}
	return nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.key(store.KeyUsername(username))).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ClaimUsername(ctx context.Context, username, accountID string) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(store.KeyUsername(username)), accountID, 0).Result()
}

func (s *Store) GetAuthMethod(ctx context.Context, accountID, providerName string) (*store.AuthMethod, error) {
	raw, err := s.rdb.HGet(ctx, s.key(store.KeyAuthMethods(accountID)), providerName).Result()
	if err == goredis.Nil {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var m store.AuthMethod
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("redis: decode auth method: %w", err)
	}
	return &m, nil
}

func (s *Store) ListAuthMethods(ctx context.Context, accountID string) ([]store.AuthMethod, error) {
	all, err := s.rdb.HGetAll(ctx, s.key(store.KeyAuthMethods(accountID))).Result()
	if err != nil {
		return nil, err
	}
	out := make([]store.AuthMethod, 0, len(all))
	for _, raw := range all {
		var m store.AuthMethod
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("redis: decode auth method: %w", err)
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
	prev, err := s.GetAuthMethod(ctx, accountID, m.ProviderName)
	if err != nil && !store.IsNotFound(err) {
		return err
	}

	pipe := s.rdb.TxPipeline()
	// A replaced provider id must not keep resolving to this account.
	if prev != nil && prev.ProviderID != m.ProviderID {
		pipe.Del(ctx, s.key(store.KeyProviderIdentity(m.ProviderName, prev.ProviderID)))
	}
	pipe.HSet(ctx, s.key(store.KeyAuthMethods(accountID)), m.ProviderName, string(raw))
	pipe.Set(ctx, s.key(store.KeyProviderIdentity(m.ProviderName, m.ProviderID)), accountID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: put auth method: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }
func (s *Store) Close() error                   { return s.rdb.Close() }

func accountToHash(a *store.Account) map[string]any {
	return map[string]any{
		"username":      a.Username,
		"email":         a.Email,
		"screen_name":   a.ScreenName,
		"password_hash": a.PasswordHash,
		"created_at":    a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func accountFromHash(id string, m map[string]string) *store.Account {
	a := &store.Account{
		ID:           id,
		Username:     m["username"],
		Email:        m["email"],
		ScreenName:   m["screen_name"],
		PasswordHash: m["password_hash"],
	}
	if ts, err := time.Parse(time.RFC3339Nano, m["created_at"]); err == nil {
		a.CreatedAt = ts
	}
	return a
}
