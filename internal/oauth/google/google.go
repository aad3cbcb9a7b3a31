// Package google implements the Google OIDC userinfo profile fetch.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/featherfeed/featherfeed-id/internal/identity"
)

const userinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"

type Fetcher struct {
	http *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: 10 * time.Second}}
}

type userinfo struct {
	Sub        string `json:"sub"`
	Name       string `json:"name"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
}

func (f *Fetcher) Fetch(ctx context.Context, accessToken string) (*identity.ExternalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userinfoEndpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: userinfo status %d", resp.StatusCode)
	}

	var ui userinfo
	if err := json.NewDecoder(resp.Body).Decode(&ui); err != nil {
		return nil, fmt.Errorf("google: decode userinfo: %w", err)
	}
	if ui.Sub == "" {
		return nil, fmt.Errorf("google: userinfo missing sub")
	}

	profile := &identity.ExternalProfile{
		ProviderName: "google",
		ProviderID:   ui.Sub,
		DisplayName:  ui.Name,
		FirstName:    ui.GivenName,
		LastName:     ui.FamilyName,
	}
	if ui.Email != "" {
		profile.Emails = []identity.ProfileEmail{{Value: ui.Email}}
	}
	return profile, nil
}
