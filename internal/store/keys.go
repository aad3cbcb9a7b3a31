package store

import "strings"

// Key layout shared by the KV adapters. Index keys follow the
// "{attribute}:{value}:uid" scheme so a lookup by attribute is a single GET.

func KeyAccount(id string) string { return "account:" + id }

func KeyAuthMethods(accountID string) string { return "account:" + accountID + ":authmethods" }

// KeyUsername is the per-username claim key. This is the uniqueness index:
// whoever holds it owns the name.
func KeyUsername(username string) string { return "username:" + Normalize(username) + ":uid" }

func KeyEmail(email string) string { return "email:" + Normalize(email) + ":uid" }

func KeyProviderIdentity(providerName, providerID string) string {
	return "authmethod:" + providerName + ":" + providerID + ":uid"
}

// Normalize lowercases and trims an index value. Usernames and emails are
// matched case-insensitively.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
