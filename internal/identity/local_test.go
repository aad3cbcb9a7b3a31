package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/featherfeed/featherfeed-id/internal/store/memory"
)

func TestRegisterAndAuthenticateLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewResolver(Deps{Store: memory.New()})
	account, err := r.RegisterLocal(ctx, "jane", "jane@example.com", "hunter22", "Jane Doe")
	if err != nil {
		t.Fatalf("RegisterLocal: %v", err)
	}
	if account.Username != "jane" || account.PasswordHash == "" {
		t.Fatalf("account = %+v", account)
	}

	got, err := r.AuthenticateLocal(ctx, "jane", "hunter22")
	if err != nil {
		t.Fatalf("AuthenticateLocal by username: %v", err)
	}
	if got.ID != account.ID {
		t.Fatalf("wrong account: %s", got.ID)
	}

	got, err = r.AuthenticateLocal(ctx, "jane@example.com", "hunter22")
	if err != nil {
		t.Fatalf("AuthenticateLocal by email: %v", err)
	}
	if got.ID != account.ID {
		t.Fatalf("wrong account: %s", got.ID)
	}
}

func TestAuthenticateLocalRejections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	r := NewResolver(Deps{Store: memory.New()})
	if _, err := r.RegisterLocal(ctx, "jane", "jane@example.com", "hunter22", ""); err != nil {
		t.Fatalf("RegisterLocal: %v", err)
	}

	if _, err := r.AuthenticateLocal(ctx, "nobody", "hunter22"); !errors.Is(err, ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
	if _, err := r.AuthenticateLocal(ctx, "jane", "wrong"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestAuthenticateLocalNoPasswordSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New()
	// Provisioned via a provider, so no password hash exists.
	seedAccount(t, st, "u1", "jane", "jane@example.com")

	r := NewResolver(Deps{Store: st})
	if _, err := r.AuthenticateLocal(ctx, "jane", "anything"); !errors.Is(err, ErrBadPassword) {
		t.Fatalf("expected ErrBadPassword, got %v", err)
	}
}

func TestRegisterLocalTakenAndReserved(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	st := memory.New()
	r := NewResolver(Deps{Store: st})

	if _, err := r.RegisterLocal(ctx, "jane", "a@example.com", "pw-one-1", ""); err != nil {
		t.Fatalf("RegisterLocal: %v", err)
	}
	if _, err := r.RegisterLocal(ctx, "jane", "b@example.com", "pw-two-2", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if _, err := r.RegisterLocal(ctx, "admin", "c@example.com", "pw-three", ""); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("reserved name accepted: %v", err)
	}
}
