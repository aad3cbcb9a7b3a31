// Package state signs and verifies the OAuth round-trip capability token.
// The token carries the initiating window's origin and rides the provider
// redirect as the OAuth state parameter: client-side for one round trip,
// never persisted server-side, read once by the callback.
package state

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Audience scopes the token to this flow; anything else is rejected.
const Audience = "oauth-origin"

// Mode distinguishes the login flow from re-authorization.
type Mode string

const (
	ModeLogin Mode = "login"
	ModeAuthz Mode = "authz"
)

// Claims is the capability payload. AccountID is set only for authz mode,
// binding the round trip to the account that started it; the provider
// redirect cannot carry a session of its own.
type Claims struct {
	Provider  string `json:"provider"`
	Origin    string `json:"origin,omitempty"`
	Mode      Mode   `json:"mode"`
	Nonce     string `json:"nonce"`
	AccountID string `json:"accountId,omitempty"`
}

var (
	ErrInvalid  = errors.New("state: invalid token")
	ErrExpired  = errors.New("state: token expired")
	ErrAudience = errors.New("state: audience mismatch")
	ErrProvider = errors.New("state: provider mismatch")
)

// Signer signs and parses capability tokens with the service secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Signer{secret: []byte(secret), ttl: ttl}
}

// Sign issues a capability token bound to one OAuth round trip.
func (s *Signer) Sign(c Claims) (string, error) {
	now := time.Now().UTC()
	mapClaims := jwtv5.MapClaims{
		"aud":      Audience,
		"iat":      now.Unix(),
		"nbf":      now.Unix(),
		"exp":      now.Add(s.ttl).Unix(),
		"provider": c.Provider,
		"mode":     string(c.Mode),
		"nonce":    c.Nonce,
	}
	if c.Origin != "" {
		mapClaims["origin"] = c.Origin
	}
	if c.AccountID != "" {
		mapClaims["accountId"] = c.AccountID
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, mapClaims)
	return tok.SignedString(s.secret)
}

// Parse validates the token and checks it was minted for wantProvider.
func (s *Signer) Parse(tokenString, wantProvider string) (*Claims, error) {
	tok, err := jwtv5.Parse(tokenString, func(t *jwtv5.Token) (any, error) {
		return s.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}
	mapClaims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, ErrInvalid
	}
	if aud, _ := mapClaims["aud"].(string); aud != Audience {
		return nil, ErrAudience
	}

	c := &Claims{
		Provider:  getString(mapClaims, "provider"),
		Origin:    getString(mapClaims, "origin"),
		Mode:      Mode(getString(mapClaims, "mode")),
		Nonce:     getString(mapClaims, "nonce"),
		AccountID: getString(mapClaims, "accountId"),
	}
	if c.Provider != wantProvider {
		return nil, ErrProvider
	}
	return c, nil
}

func getString(m jwtv5.MapClaims, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
