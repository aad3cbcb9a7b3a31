// Package oauth maps provider names to their configuration records. The
// mapping is built once at startup from config and passed explicitly into
// the HTTP surface; there is no ambient registry.
package oauth

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/featherfeed/featherfeed-id/internal/config"
	"github.com/featherfeed/featherfeed-id/internal/identity"
	"github.com/featherfeed/featherfeed-id/internal/oauth/facebook"
	"github.com/featherfeed/featherfeed-id/internal/oauth/github"
	"github.com/featherfeed/featherfeed-id/internal/oauth/google"
)

// ProfileFetcher turns a provider access token into a verified
// ExternalProfile. Implementations make no auth decisions.
type ProfileFetcher interface {
	Fetch(ctx context.Context, accessToken string) (*identity.ExternalProfile, error)
}

// Provider is one configured identity provider.
type Provider struct {
	Name string

	// Config drives the standard login flow; AuthzConfig the
	// re-authorization flow (distinct callback path).
	Config      *oauth2.Config
	AuthzConfig *oauth2.Config

	// AuthzOptions are extra authorize-URL parameters for the
	// re-authorization flow (facebook wants auth_type=rerequest).
	AuthzOptions []oauth2.AuthCodeOption

	Profile ProfileFetcher

	// Exchanger upgrades short-lived tokens; nil when the provider has no
	// long-lived token concept.
	Exchanger identity.TokenExchanger

	// SupportsAuthz gates the re-authorization routes.
	SupportsAuthz bool
}

// Providers is the name -> provider mapping.
type Providers map[string]*Provider

// Build constructs the provider mapping from config. Providers with an
// empty client id are left out.
func Build(cfg *config.Config) Providers {
	host := cfg.Server.Host
	out := Providers{}

	if cfg.OAuth.Facebook.ClientID != "" {
		creds := cfg.OAuth.Facebook
		out["facebook"] = &Provider{
			Name:          "facebook",
			Config:        providerConfig(creds, endpoints.Facebook, callbackURL(host, "facebook"), []string{"email", "public_profile", "user_friends"}),
			AuthzConfig:   providerConfig(creds, endpoints.Facebook, authzCallbackURL(host, "facebook"), []string{"email", "public_profile", "user_friends"}),
			AuthzOptions:  []oauth2.AuthCodeOption{oauth2.SetAuthURLParam("auth_type", "rerequest")},
			Profile:       facebook.NewFetcher(),
			Exchanger:     facebook.NewExchanger(creds.ClientID, creds.ClientSecret),
			SupportsAuthz: true,
		}
	}

	if cfg.OAuth.Google.ClientID != "" {
		creds := cfg.OAuth.Google
		out["google"] = &Provider{
			Name:    "google",
			Config:  providerConfig(creds, endpoints.Google, callbackURL(host, "google"), []string{"email"}),
			Profile: google.NewFetcher(),
		}
	}

	if cfg.OAuth.GitHub.ClientID != "" {
		creds := cfg.OAuth.GitHub
		out["github"] = &Provider{
			Name:    "github",
			Config:  providerConfig(creds, endpoints.GitHub, callbackURL(host, "github"), []string{"user:email"}),
			Profile: github.NewFetcher(),
		}
	}

	return out
}

func providerConfig(creds config.ProviderCredentials, ep oauth2.Endpoint, redirect string, scopes []string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     ep,
		RedirectURL:  redirect,
		Scopes:       scopes,
	}
}

func callbackURL(host, provider string) string {
	return host + "/v2/oauth/" + provider + "/callback"
}

func authzCallbackURL(host, provider string) string {
	return host + "/v2/oauth/" + provider + "/authz/callback"
}
