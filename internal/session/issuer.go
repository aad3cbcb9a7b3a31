// Package session issues and parses the auth tokens handed back to the
// popup after a successful resolution. The signer is deliberately opaque
// to the identity engine: HS256 over the configured secret.
package session

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var ErrTokenInvalid = errors.New("session: invalid token")

type Issuer struct {
	secret []byte
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret)}
}

// Sign issues an auth token for the account.
func (i *Issuer) Sign(accountID string) (string, error) {
	claims := jwtv5.MapClaims{
		"userId": accountID,
		"iat":    time.Now().UTC().Unix(),
	}
	tok := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	return tok.SignedString(i.secret)
}

// Parse validates the token and returns the account id.
func (i *Issuer) Parse(tokenString string) (string, error) {
	tok, err := jwtv5.Parse(tokenString, func(t *jwtv5.Token) (any, error) {
		return i.secret, nil
	}, jwtv5.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return "", ErrTokenInvalid
	}
	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return "", ErrTokenInvalid
	}
	id, _ := claims["userId"].(string)
	if id == "" {
		return "", ErrTokenInvalid
	}
	return id, nil
}
