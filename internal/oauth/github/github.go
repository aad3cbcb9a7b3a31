// Package github implements the GitHub profile fetch. GitHub is plain
// OAuth 2.0 without ID tokens, so the profile and the primary email come
// from separate API calls.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/featherfeed/featherfeed-id/internal/identity"
)

const (
	userEndpoint  = "https://api.github.com/user"
	emailEndpoint = "https://api.github.com/user/emails"
)

type Fetcher struct {
	http *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{http: &http.Client{Timeout: 10 * time.Second}}
}

type ghUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type ghEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (f *Fetcher) Fetch(ctx context.Context, accessToken string) (*identity.ExternalProfile, error) {
	var u ghUser
	if err := f.getJSON(ctx, userEndpoint, accessToken, &u); err != nil {
		return nil, err
	}
	if u.ID == 0 {
		return nil, fmt.Errorf("github: user response missing id")
	}

	email := u.Email
	if email == "" {
		// The public email is often unset; the emails endpoint has the
		// primary one when user:email was granted.
		var emails []ghEmail
		if err := f.getJSON(ctx, emailEndpoint, accessToken, &emails); err == nil {
			for _, e := range emails {
				if e.Primary && e.Verified {
					email = e.Email
					break
				}
			}
		}
	}

	profile := &identity.ExternalProfile{
		ProviderName: "github",
		ProviderID:   strconv.FormatInt(u.ID, 10),
		DisplayName:  u.Name,
		Username:     u.Login,
	}
	if email != "" {
		profile.Emails = []identity.ProfileEmail{{Value: email}}
	}
	return profile, nil
}

func (f *Fetcher) getJSON(ctx context.Context, url, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github: %s status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
