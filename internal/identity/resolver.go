package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/featherfeed/featherfeed-id/internal/observability/logger"
	"github.com/featherfeed/featherfeed-id/internal/store"
)

// Outcome is the result of resolving an external identity assertion.
// Linked is false only when the account was provisioned by this call.
type Outcome struct {
	Account *store.Account
	Linked  bool
}

// TokenExchanger upgrades a short-lived provider token to a long-lived one.
// Exchange failure is non-fatal; callers fall back to the short-lived token.
type TokenExchanger interface {
	Exchange(ctx context.Context, shortLived string) (string, error)
}

// ReAuthOutcome is the result of a re-authorization flow. ExchangeErr is
// set when the token upgrade failed and the short-lived token was cached
// instead; the flow itself still succeeded.
type ReAuthOutcome struct {
	AccessToken string
	ExchangeErr error
}

// Deps contains the resolver's collaborators.
type Deps struct {
	Store             store.AccountStore
	ReservedUsernames []string
}

// Resolver decides whether an external identity assertion links to the
// session account, attaches to an account found by provider id or email,
// or provisions a new account.
type Resolver struct {
	store     store.AccountStore
	ledger    *Ledger
	usernames *UsernameGenerator
}

func NewResolver(d Deps) *Resolver {
	reserved := d.ReservedUsernames
	if len(reserved) == 0 {
		reserved = DefaultReserved
	}
	return &Resolver{
		store:     d.Store,
		ledger:    NewLedger(d.Store),
		usernames: NewUsernameGenerator(d.Store, reserved),
	}
}

// Ledger exposes the auth-method ledger for callers that need to list
// linked identities after resolution.
func (r *Resolver) Ledger() *Ledger { return r.ledger }

// Resolve runs the decision order: session-linked, provider-id match,
// email match, provision. Every branch caches the raw token in the ledger
// so a follow-up provider API call has a fresh token. A ledger write
// failure after the account was resolved aborts with ErrLinkFailure.
func (r *Resolver) Resolve(ctx context.Context, sessionAccount *store.Account, profile *ExternalProfile, token string) (*Outcome, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity.resolver"),
		logger.Provider(profile.ProviderName),
	)

	// 1. Session-linked: attach to the already-authenticated account.
	if sessionAccount != nil {
		if err := r.ensureIdentityFree(ctx, sessionAccount.ID, profile); err != nil {
			return nil, err
		}
		if err := r.ledger.Upsert(ctx, sessionAccount.ID, profile, token); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLinkFailure, err)
		}
		log.Info("auth method linked to session account", logger.AccountID(sessionAccount.ID))
		return &Outcome{Account: sessionAccount, Linked: true}, nil
	}

	// 2. Provider-id match.
	account, err := r.store.GetByProviderIdentity(ctx, profile.ProviderName, profile.ProviderID)
	if err != nil && !store.IsNotFound(err) {
		return nil, err
	}

	// 3. Email match: a user who signed up with email/password linking a
	// social login for the first time.
	if account == nil || store.IsNotFound(err) {
		account = nil
		if email := profile.PrimaryEmail(); email != "" {
			account, err = r.store.GetByEmail(ctx, email)
			if err != nil && !store.IsNotFound(err) {
				return nil, err
			}
			if store.IsNotFound(err) {
				account = nil
			}
		}
	}

	if account != nil {
		if err := r.ensureIdentityFree(ctx, account.ID, profile); err != nil {
			return nil, err
		}
		if err := r.ledger.Upsert(ctx, account.ID, profile, token); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLinkFailure, err)
		}
		log.Info("auth method linked", logger.AccountID(account.ID))
		return &Outcome{Account: account, Linked: true}, nil
	}

	// 4. Provision.
	account, err = r.provision(ctx, profile, token)
	if err != nil {
		return nil, err
	}
	log.Info("account provisioned",
		logger.AccountID(account.ID),
		logger.Username(account.Username),
		logger.String("email_masked", maskEmail(account.Email)),
	)
	return &Outcome{Account: account, Linked: false}, nil
}

// ensureIdentityFree rejects linking a provider identity that another
// account already holds. A (providerName, providerId) pair belongs to at
// most one account, on every backend.
func (r *Resolver) ensureIdentityFree(ctx context.Context, accountID string, profile *ExternalProfile) error {
	owner, err := r.store.GetByProviderIdentity(ctx, profile.ProviderName, profile.ProviderID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil
		}
		return err
	}
	if owner.ID != accountID {
		return ErrAlreadyLinked
	}
	return nil
}

func (r *Resolver) provision(ctx context.Context, profile *ExternalProfile, token string) (*store.Account, error) {
	email := profile.PrimaryEmail()
	if profile.ProviderID == "" && email == "" {
		return nil, ErrInvalidProfile
	}

	id := uuid.NewString()
	username, err := r.usernames.GenerateAndClaim(ctx, Signals{
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     email,
		Username:  profile.Username,
	}, id)
	if err != nil {
		return nil, err
	}

	account := &store.Account{
		ID:         id,
		Username:   username,
		Email:      email,
		ScreenName: profile.ScreenName(),
	}
	if err := r.store.Create(ctx, account); err != nil {
		return nil, err
	}
	if err := r.ledger.Upsert(ctx, account.ID, profile, token); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkFailure, err)
	}
	return account, nil
}

// ReAuthorize re-proves ownership of an already-linked provider identity
// and refreshes the cached token, upgrading it to a long-lived one when an
// exchanger is configured. The returned providerId must match the linked
// one; a mismatch is rejected with ErrIdentityMismatch and nothing is
// written.
func (r *Resolver) ReAuthorize(ctx context.Context, account *store.Account, profile *ExternalProfile, token string, exchanger TokenExchanger) (*ReAuthOutcome, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("identity.resolver"),
		logger.Provider(profile.ProviderName),
		logger.AccountID(account.ID),
	)

	if _, err := r.ledger.Find(ctx, account.ID, profile.ProviderName, profile.ProviderID); err != nil {
		if store.IsNotFound(err) {
			return nil, ErrIdentityMismatch
		}
		return nil, err
	}

	out := &ReAuthOutcome{AccessToken: token}
	if exchanger != nil {
		longLived, err := exchanger.Exchange(ctx, token)
		if err != nil {
			// Best effort: cache the short-lived token instead.
			out.ExchangeErr = fmt.Errorf("%w: %v", ErrExchangeFailed, err)
			log.Warn("token exchange failed, caching short-lived token", logger.Err(err))
		} else {
			out.AccessToken = longLived
		}
	}

	if err := r.ledger.Upsert(ctx, account.ID, profile, out.AccessToken); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkFailure, err)
	}
	return out, nil
}

// maskEmail masks an email for logging (first 2 chars + domain).
func maskEmail(email string) string {
	if len(email) < 3 {
		return "***"
	}
	at := strings.IndexByte(email, '@')
	if at < 2 {
		return email[:2] + "***"
	}
	return email[:2] + "***" + email[at:]
}
