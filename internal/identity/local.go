package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/featherfeed/featherfeed-id/internal/security/password"
	"github.com/featherfeed/featherfeed-id/internal/store"
)

// AuthenticateLocal checks a username-or-email plus password pair. The
// presence of "@" decides which lookup runs. Error values never reveal
// whether the account exists.
func (r *Resolver) AuthenticateLocal(ctx context.Context, usernameOrEmail, clearPassword string) (*store.Account, error) {
	needle := strings.TrimSpace(usernameOrEmail)

	var account *store.Account
	var err error
	if strings.Contains(needle, "@") {
		account, err = r.store.GetByEmail(ctx, needle)
	} else {
		account, err = r.store.GetByUsername(ctx, needle)
	}
	if err != nil {
		if store.IsNotFound(err) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}

	if account.PasswordHash == "" || !password.Verify(clearPassword, account.PasswordHash) {
		return nil, ErrBadPassword
	}
	return account, nil
}

// RegisterLocal provisions an account with an explicit username and a
// password. The username goes through the same reserved-word check and
// atomic claim as generated ones, but no suffix fallback: a taken name is
// the caller's problem.
func (r *Resolver) RegisterLocal(ctx context.Context, username, email, clearPassword, screenName string) (*store.Account, error) {
	taken, err := r.usernames.unavailable(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, ErrUsernameTaken
	}

	hash, err := password.Hash(password.Default, clearPassword)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	claimed, err := r.store.ClaimUsername(ctx, username, id)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrUsernameTaken
	}

	account := &store.Account{
		ID:           id,
		Username:     username,
		Email:        email,
		ScreenName:   screenName,
		PasswordHash: hash,
	}
	if err := r.store.Create(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}
