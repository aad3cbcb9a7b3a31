// Package pg implements the account store on Postgres. The username claim
// lives in its own table so claiming stays a single conflict-free insert,
// mirroring the SETNX semantics of the Redis backend.
package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres using the given DSN.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

const accountCols = `id, username, email, screen_name, password_hash, created_at`

func (s *Store) GetByID(ctx context.Context, id string) (*store.Account, error) {
	return s.scanOne(ctx, `SELECT `+accountCols+` FROM account WHERE id=$1`, id)
}

func (s *Store) GetByUsername(ctx context.Context, username string) (*store.Account, error) {
	return s.scanOne(ctx, `
		SELECT `+accountCols+` FROM account
		WHERE LOWER(username)=$1`, store.Normalize(username))
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*store.Account, error) {
	return s.scanOne(ctx, `
		SELECT `+accountCols+` FROM account
		WHERE LOWER(email)=$1`, store.Normalize(email))
}

func (s *Store) GetByProviderIdentity(ctx context.Context, providerName, providerID string) (*store.Account, error) {
	return s.scanOne(ctx, `
		SELECT a.id, a.username, a.email, a.screen_name, a.password_hash, a.created_at
		FROM account a
		JOIN auth_method m ON m.account_id = a.id
		WHERE m.provider_name=$1 AND m.provider_id=$2`, providerName, providerID)
}

func (s *Store) scanOne(ctx context.Context, q string, args ...any) (*store.Account, error) {
	var a store.Account
	var email, screenName, passwordHash *string
	err := s.pool.QueryRow(ctx, q, args...).Scan(
		&a.ID, &a.Username, &email, &screenName, &passwordHash, &a.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if email != nil {
		a.Email = *email
	}
	if screenName != nil {
		a.ScreenName = *screenName
	}
	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *store.Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account (id, username, email, screen_name, password_hash, created_at)
		VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6)
	`, a.ID, a.Username, a.Email, a.ScreenName, a.PasswordHash, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("pg: insert account: %w", err)
	}
	return nil
}

func (s *Store) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM username_claim WHERE username=$1)
	`, store.Normalize(username)).Scan(&exists)
	return exists, err
}

func (s *Store) ClaimUsername(ctx context.Context, username, accountID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO username_claim (username, account_id)
		VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
	`, store.Normalize(username), accountID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) GetAuthMethod(ctx context.Context, accountID, providerName string) (*store.AuthMethod, error) {
	var m store.AuthMethod
	var profile []byte
	var token *string
	err := s.pool.QueryRow(ctx, `
		SELECT provider_name, provider_id, profile, access_token, linked_at
		FROM auth_method
		WHERE account_id=$1 AND provider_name=$2
	`, accountID, providerName).Scan(&m.ProviderName, &m.ProviderID, &profile, &token, &m.LinkedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Profile = json.RawMessage(profile)
	if token != nil {
		m.AccessToken = *token
	}
	return &m, nil
}

func (s *Store) ListAuthMethods(ctx context.Context, accountID string) ([]store.AuthMethod, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT provider_name, provider_id, profile, access_token, linked_at
		FROM auth_method
		WHERE account_id=$1
		ORDER BY linked_at
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.AuthMethod
	for rows.Next() {
		var m store.AuthMethod
		var profile []byte
		var token *string
		if err := rows.Scan(&m.ProviderName, &m.ProviderID, &profile, &token, &m.LinkedAt); err != nil {
			return nil, err
		}
		m.Profile = json.RawMessage(profile)
		if token != nil {
			m.AccessToken = *token
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) PutAuthMethod(ctx context.Context, accountID string, m *store.AuthMethod) error {
	profile := m.Profile
	if profile == nil {
		profile = json.RawMessage(`{}`)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO auth_method (account_id, provider_name, provider_id, profile, access_token, linked_at)
		VALUES ($1,$2,$3,$4,NULLIF($5,''),$6)
		ON CONFLICT (account_id, provider_name) DO UPDATE
		SET provider_id=EXCLUDED.provider_id,
		    profile=EXCLUDED.profile,
		    access_token=EXCLUDED.access_token
	`, accountID, m.ProviderName, m.ProviderID, []byte(profile), m.AccessToken, m.LinkedAt)
	if err != nil {
		return fmt.Errorf("pg: upsert auth method: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
