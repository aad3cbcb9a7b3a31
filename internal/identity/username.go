package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

// Signals are the naming inputs available for a new account, in priority
// order: explicit username, email local-part, first+last name.
type Signals struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
}

// DefaultReserved are system and routing names the generator never hands
// out. Deployments extend the list via config.
var DefaultReserved = []string{
	"anonymous", "public", "about", "signin", "signup", "logout",
	"settings", "account", "admin", "support", "search", "filter",
	"summary", "invite", "invited", "attachments", "files", "404",
}

// UsernameGenerator derives a base username from the available signals and
// resolves collisions against the account store.
type UsernameGenerator struct {
	store    store.AccountStore
	reserved map[string]struct{}
}

func NewUsernameGenerator(s store.AccountStore, reserved []string) *UsernameGenerator {
	set := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		set[store.Normalize(r)] = struct{}{}
	}
	return &UsernameGenerator{store: s, reserved: set}
}

// Generate picks the first available candidate. Collisions get an increasing
// integer suffix (candidate1, candidate2, ...) until a free name is found.
// This probe alone is advisory under concurrency; GenerateAndClaim is the
// authoritative path.
func (g *UsernameGenerator) Generate(ctx context.Context, sig Signals) (string, error) {
	base, err := deriveBase(sig)
	if err != nil {
		return "", err
	}
	candidate := base
	for n := 1; ; n++ {
		taken, err := g.unavailable(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, n)
	}
}

// GenerateAndClaim generates a username and atomically claims it for
// accountID. A claim lost to a concurrent provisioner sends the loop back
// to probing; the suffix sequence guarantees it eventually lands.
func (g *UsernameGenerator) GenerateAndClaim(ctx context.Context, sig Signals, accountID string) (string, error) {
	base, err := deriveBase(sig)
	if err != nil {
		return "", err
	}
	candidate := base
	for n := 1; ; n++ {
		taken, err := g.unavailable(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			claimed, err := g.store.ClaimUsername(ctx, candidate, accountID)
			if err != nil {
				return "", err
			}
			if claimed {
				return candidate, nil
			}
			// Lost the race for this candidate; keep walking the suffixes.
		}
		candidate = fmt.Sprintf("%s%d", base, n)
	}
}

func (g *UsernameGenerator) unavailable(ctx context.Context, candidate string) (bool, error) {
	if _, ok := g.reserved[store.Normalize(candidate)]; ok {
		return true, nil
	}
	return g.store.UsernameExists(ctx, candidate)
}

// deriveBase picks the signal and strips every non-alphanumeric character,
// preserving case: jane.doe@x.com -> janedoe, "John Doe" -> JohnDoe.
func deriveBase(sig Signals) (string, error) {
	var raw string
	switch {
	case sig.Username != "":
		raw = sig.Username
	case sig.Email != "":
		raw = strings.SplitN(sig.Email, "@", 2)[0]
	case sig.FirstName != "" && sig.LastName != "":
		raw = sig.FirstName + sig.LastName
	default:
		return "", ErrCannotDeriveUsername
	}

	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrCannotDeriveUsername
	}
	return b.String(), nil
}
