// Package facebook implements the Facebook Graph profile fetch and the
// short-lived to long-lived token exchange.
package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/featherfeed/featherfeed-id/internal/identity"
)

const (
	graphMeEndpoint       = "https://graph.facebook.com/me"
	graphExchangeEndpoint = "https://graph.facebook.com/oauth/access_token"
)

// Fetcher retrieves the user profile from the Graph API.
type Fetcher struct {
	endpoint string
	http     *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		endpoint: graphMeEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

// SetEndpoint overrides the profile endpoint for tests.
func (f *Fetcher) SetEndpoint(url string) { f.endpoint = url }

type graphProfile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (f *Fetcher) Fetch(ctx context.Context, accessToken string) (*identity.ExternalProfile, error) {
	u, err := url.Parse(f.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("fields", "id,name,first_name,last_name,email")
	q.Set("access_token", accessToken)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("facebook: profile fetch status %d", resp.StatusCode)
	}

	var gp graphProfile
	if err := json.NewDecoder(resp.Body).Decode(&gp); err != nil {
		return nil, fmt.Errorf("facebook: decode profile: %w", err)
	}
	if gp.ID == "" {
		return nil, fmt.Errorf("facebook: profile missing id")
	}

	profile := &identity.ExternalProfile{
		ProviderName: "facebook",
		ProviderID:   gp.ID,
		DisplayName:  gp.Name,
		FirstName:    gp.FirstName,
		LastName:     gp.LastName,
	}
	if gp.Email != "" {
		profile.Emails = []identity.ProfileEmail{{Value: gp.Email}}
	}
	return profile, nil
}

// Exchanger upgrades a short-lived user token to a long-lived one via
// grant_type=fb_exchange_token.
type Exchanger struct {
	clientID     string
	clientSecret string
	endpoint     string
	http         *http.Client
}

func NewExchanger(clientID, clientSecret string) *Exchanger {
	return &Exchanger{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     graphExchangeEndpoint,
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (e *Exchanger) Exchange(ctx context.Context, shortLived string) (string, error) {
	u, err := url.Parse(e.endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", e.clientID)
	q.Set("client_secret", e.clientSecret)
	q.Set("fb_exchange_token", shortLived)
	u.RawQuery = q.Encode()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if reqErr != nil {
		return "", reqErr
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("facebook: exchange status %d", resp.StatusCode)
	}

	var tr struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("facebook: decode exchange response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("facebook: no access_token in exchange response")
	}
	return tr.AccessToken, nil
}

// SetEndpoint overrides the exchange endpoint. Tests point it at a local
// httptest server.
func (e *Exchanger) SetEndpoint(url string) { e.endpoint = url }
