package memory

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/featherfeed/featherfeed-id/internal/store"
)

func TestClaimUsernameIsExclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New()
	ok, err := s.ClaimUsername(ctx, "jane", "u1")
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = s.ClaimUsername(ctx, "jane", "u2")
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("second claim of the same username succeeded")
	}

	exists, err := s.UsernameExists(ctx, "jane")
	if err != nil || !exists {
		t.Fatalf("UsernameExists = %v, %v", exists, err)
	}
	// Lookups are case-insensitive.
	exists, _ = s.UsernameExists(ctx, "JANE")
	if !exists {
		t.Fatal("claim not visible under a different case")
	}
}

func TestClaimUsernameConcurrent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New()
	const n = 32
	var wg sync.WaitGroup
	wins := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			ok, err := s.ClaimUsername(ctx, "jane", "u")
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			if ok {
				wins <- "u"
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Fatalf("%d claimants won, want exactly 1", count)
	}
}

func TestAccountIndexes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New()
	a := &store.Account{ID: "u1", Username: "jane", Email: "jane@example.com"}
	if ok, err := s.ClaimUsername(ctx, a.Username, a.ID); err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if err := s.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := s.GetByUsername(ctx, "Jane")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetByUsername: %+v, %v", got, err)
	}
	got, err = s.GetByEmail(ctx, "jane@example.com")
	if err != nil || got.ID != "u1" {
		t.Fatalf("GetByEmail: %+v, %v", got, err)
	}
	if _, err := s.GetByEmail(ctx, "nobody@example.com"); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthMethodRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New()
	m := &store.AuthMethod{
		ProviderName: "facebook",
		ProviderID:   "fb-1",
		Profile:      json.RawMessage(`{"id":"fb-1"}`),
		AccessToken:  "tok",
	}
	if err := s.PutAuthMethod(ctx, "u1", m); err != nil {
		t.Fatalf("PutAuthMethod: %v", err)
	}

	got, err := s.GetAuthMethod(ctx, "u1", "facebook")
	if err != nil {
		t.Fatalf("GetAuthMethod: %v", err)
	}
	if got.ProviderID != "fb-1" || got.AccessToken != "tok" {
		t.Fatalf("auth method = %+v", got)
	}

	// The provider identity index points back at the account.
	acct := &store.Account{ID: "u1", Username: "jane"}
	if err := s.Create(ctx, acct); err != nil {
		t.Fatalf("Create: %v", err)
	}
	found, err := s.GetByProviderIdentity(ctx, "facebook", "fb-1")
	if err != nil || found.ID != "u1" {
		t.Fatalf("GetByProviderIdentity: %+v, %v", found, err)
	}

	list, err := s.ListAuthMethods(ctx, "u1")
	if err != nil || len(list) != 1 {
		t.Fatalf("ListAuthMethods: %v, %v", list, err)
	}
	if _, err := s.GetAuthMethod(ctx, "u1", "google"); !store.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound for unlinked provider, got %v", err)
	}
}

func TestPutAuthMethodDropsReplacedIdentityIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := New()
	acct := &store.Account{ID: "u1", Username: "jane"}
	if err := s.Create(ctx, acct); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.PutAuthMethod(ctx, "u1", &store.AuthMethod{ProviderName: "facebook", ProviderID: "fb-1"}); err != nil {
		t.Fatalf("PutAuthMethod: %v", err)
	}
	if err := s.PutAuthMethod(ctx, "u1", &store.AuthMethod{ProviderName: "facebook", ProviderID: "fb-2"}); err != nil {
		t.Fatalf("PutAuthMethod: %v", err)
	}

	if _, err := s.GetByProviderIdentity(ctx, "facebook", "fb-1"); !store.IsNotFound(err) {
		t.Fatalf("replaced identity still resolves: %v", err)
	}
	found, err := s.GetByProviderIdentity(ctx, "facebook", "fb-2")
	if err != nil || found.ID != "u1" {
		t.Fatalf("GetByProviderIdentity: %+v, %v", found, err)
	}
}
