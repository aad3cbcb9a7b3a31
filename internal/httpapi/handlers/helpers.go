package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var errMissingCode = errors.New("authorization code missing from callback")

// providerError renders a provider-reported authorize failure (denied
// consent, expired request) for the popup payload.
func providerError(code, description string) error {
	if description == "" {
		return fmt.Errorf("provider returned error %q", code)
	}
	return fmt.Errorf("provider returned error %q: %s", code, description)
}

// bearerToken extracts the token from the Authorization header, falling
// back to the authToken query parameter so popup navigations (which cannot
// set headers) can carry a session too.
func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if tok, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return tok
		}
	}
	return r.URL.Query().Get("authToken")
}
