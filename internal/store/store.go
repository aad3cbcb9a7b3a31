// Package store defines the account repository consumed by the identity
// engine. Accounts live in a key-value layout: one record per account plus
// dedicated index ("claim") keys per normalized username, email and provider
// identity. Username claims are compare-and-set so two concurrent
// provisioners can never both own a name.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Account is the local user record. Username uniqueness is enforced by the
// claim key, not by the record itself.
type Account struct {
	ID           string
	Username     string
	Email        string
	ScreenName   string
	PasswordHash string
	CreatedAt    time.Time
}

// AuthMethod links an account to one external provider identity. An account
// holds at most one AuthMethod per provider name.
type AuthMethod struct {
	ProviderName string          `json:"provider_name"`
	ProviderID   string          `json:"provider_id"`
	Profile      json.RawMessage `json:"profile,omitempty"`
	AccessToken  string          `json:"access_token,omitempty"`
	LinkedAt     time.Time       `json:"linked_at"`
}

// AccountStore is the persistence contract. All lookups that miss return
// ErrNotFound.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByProviderIdentity(ctx context.Context, providerName, providerID string) (*Account, error)

	// Create persists the account record and its email index. The username
	// claim must already be held by this account id (see ClaimUsername).
	Create(ctx context.Context, a *Account) error

	// UsernameExists reports whether the normalized username claim key is
	// taken. Case-insensitive.
	UsernameExists(ctx context.Context, username string) (bool, error)

	// ClaimUsername atomically claims the normalized username for accountID.
	// Returns false without error when the claim is already held by another
	// account.
	ClaimUsername(ctx context.Context, username, accountID string) (bool, error)

	// Auth-method ledger storage: a durable per-account map keyed by
	// provider name.
	GetAuthMethod(ctx context.Context, accountID, providerName string) (*AuthMethod, error)
	ListAuthMethods(ctx context.Context, accountID string) ([]AuthMethod, error)
	PutAuthMethod(ctx context.Context, accountID string, m *AuthMethod) error

	Ping(ctx context.Context) error
	Close() error
}
