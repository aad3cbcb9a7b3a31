package identity

import (
	"context"
	"time"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

// Ledger is the per-account collection of linked external identities.
// Upsert is keyed on (accountID, providerName): re-linking the same
// provider refreshes the cached profile and token but keeps the original
// linkedAt. Nothing here moves an auth method between accounts.
type Ledger struct {
	store store.AccountStore
}

func NewLedger(s store.AccountStore) *Ledger {
	return &Ledger{store: s}
}

// Upsert inserts or replaces the account's auth method for the profile's
// provider, caching the profile projection and the raw access token.
func (l *Ledger) Upsert(ctx context.Context, accountID string, profile *ExternalProfile, accessToken string) error {
	linkedAt := time.Now().UTC()
	if existing, err := l.store.GetAuthMethod(ctx, accountID, profile.ProviderName); err == nil {
		linkedAt = existing.LinkedAt
	} else if !store.IsNotFound(err) {
		return err
	}

	return l.store.PutAuthMethod(ctx, accountID, &store.AuthMethod{
		ProviderName: profile.ProviderName,
		ProviderID:   profile.ProviderID,
		Profile:      profile.CachedJSON(),
		AccessToken:  accessToken,
		LinkedAt:     linkedAt,
	})
}

// Find returns the auth method matching (accountID, providerName,
// providerID), or ErrNotFound when the provider is unlinked or linked to a
// different provider identity.
func (l *Ledger) Find(ctx context.Context, accountID, providerName, providerID string) (*store.AuthMethod, error) {
	m, err := l.store.GetAuthMethod(ctx, accountID, providerName)
	if err != nil {
		return nil, err
	}
	if m.ProviderID != providerID {
		return nil, store.ErrNotFound
	}
	return m, nil
}

// List returns every auth method linked to the account.
func (l *Ledger) List(ctx context.Context, accountID string) ([]store.AuthMethod, error) {
	return l.store.ListAuthMethods(ctx, accountID)
}
