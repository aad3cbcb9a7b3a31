// Package identity implements the federated-identity resolution and
// account-provisioning engine: deciding which local account an external
// identity assertion belongs to, linking it, or provisioning a new account
// with a collision-free username.
package identity

import "encoding/json"

// ProfileEmail is one email entry as supplied by a provider. Providers
// return an ordered list; the first entry is treated as primary.
type ProfileEmail struct {
	Value string `json:"value"`
}

// ExternalProfile is a verified, provider-supplied profile. It is immutable
// and never persisted verbatim; only the fields the ledger needs are
// projected into the cached profile.
type ExternalProfile struct {
	ProviderName string         `json:"provider"`
	ProviderID   string         `json:"id"`
	DisplayName  string         `json:"displayName,omitempty"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	Emails       []ProfileEmail `json:"emails,omitempty"`
	Username     string         `json:"username,omitempty"`
}

// PrimaryEmail returns the first email, or "".
func (p *ExternalProfile) PrimaryEmail() string {
	if len(p.Emails) == 0 {
		return ""
	}
	return p.Emails[0].Value
}

// ScreenName derives the display name for a provisioned account:
// displayName, then "first last", then first alone, then the provider's
// username field.
func (p *ExternalProfile) ScreenName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.FirstName != "" && p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	if p.FirstName != "" {
		return p.FirstName
	}
	return p.Username
}

// CachedJSON is the projection stored in the auth-method ledger.
func (p *ExternalProfile) CachedJSON() json.RawMessage {
	raw, err := json.Marshal(p)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
