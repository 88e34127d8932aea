package utils

import (
	"strings"
	"testing"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("welcome123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$") {
		t.Errorf("unexpected hash format: %q", hash)
	}

	ok, err := VerifyPassword("welcome123", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if !ok {
		t.Error("correct password should verify")
	}

	ok, err = VerifyPassword("wrong-password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if ok {
		t.Error("wrong password should not verify")
	}
}

func TestHashPassword_UniqueSalt(t *testing.T) {
	h1, err := HashPassword("welcome123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	h2, err := HashPassword("welcome123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if h1 == h2 {
		t.Error("two hashes of the same password should differ (random salt)")
	}
}

func TestVerifyPassword_InvalidFormat(t *testing.T) {
	if _, err := VerifyPassword("welcome123", "not-a-hash"); err == nil {
		t.Error("expected error for malformed hash")
	}
	if _, err := VerifyPassword("welcome123", "$bcrypt$a$b$c$d"); err == nil {
		t.Error("expected error for non-argon2id hash")
	}
}
