package identity

import "errors"

var (
	// ErrInvalidProfile: the profile carries neither a provider id nor an
	// email, so there is nothing to key an account on.
	ErrInvalidProfile = errors.New("either id or email must be present")

	// ErrCannotDeriveUsername: no usable naming signal in the profile.
	ErrCannotDeriveUsername = errors.New("could not generate username")

	// ErrLinkFailure: the ledger write failed after the account was
	// resolved. The flow must not report success.
	ErrLinkFailure = errors.New("auth method link failed")

	// ErrIdentityMismatch: a re-authorization returned a different provider
	// identity than the one already linked.
	ErrIdentityMismatch = errors.New("authenticated as a different provider account")

	// ErrAlreadyLinked: the provider identity is linked to another account.
	// A (providerName, providerId) pair belongs to at most one account.
	ErrAlreadyLinked = errors.New("this provider account is already linked to another user")

	// ErrExchangeFailed: the long-lived token upgrade failed. Recoverable;
	// the short-lived token is cached instead.
	ErrExchangeFailed = errors.New("token exchange failed")

	// ErrUnknownUser and ErrBadPassword are the local-credential failures.
	// The wording intentionally does not reveal which record exists.
	ErrUnknownUser   = errors.New("we could not find the nickname you provided")
	ErrBadPassword   = errors.New("the password you provided does not match the password in our system")
	ErrUsernameTaken = errors.New("username is already taken")
)
