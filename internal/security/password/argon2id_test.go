package password

import (
	"strings"
	"testing"
)

func TestHashVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	phc, err := Hash(Default, "hunter22")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(phc, "$argon2id$v=19$") {
		t.Fatalf("unexpected PHC prefix: %q", phc)
	}
	if !Verify("hunter22", phc) {
		t.Fatal("correct password rejected")
	}
	if Verify("hunter23", phc) {
		t.Fatal("wrong password accepted")
	}
}

func TestHashEmptyPassword(t *testing.T) {
	t.Parallel()

	if _, err := Hash(Default, ""); err == nil {
		t.Fatal("expected an error for an empty password")
	}
}

func TestVerifyMalformed(t *testing.T) {
	t.Parallel()

	for _, phc := range []string{
		"",
		"$argon2id$v=19$m=65536,t=3,p=1$salt",
		"$argon2i$v=19$m=65536,t=3,p=1$c2FsdA$ZGs",
		"$argon2id$v=18$m=65536,t=3,p=1$c2FsdA$ZGs",
		"$argon2id$v=19$bogus$c2FsdA$ZGs",
		"$argon2id$v=19$m=65536,t=3,p=1$!!$ZGs",
	} {
		if Verify("anything", phc) {
			t.Fatalf("malformed PHC accepted: %q", phc)
		}
	}
}
