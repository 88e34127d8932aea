package utils

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"jane@example.com", "j.doe+tag@mail.co"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q): unexpected error: %v", email, err)
		}
	}

	invalid := []string{"", "not-an-email", "jane@", "Jane Doe <jane@example.com>"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q): expected error", email)
		}
	}
}

func TestValidateFullName(t *testing.T) {
	if err := ValidateFullName("Jane Doe"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	for _, name := range []string{"", " ", "J"} {
		if err := ValidateFullName(name); err == nil {
			t.Errorf("ValidateFullName(%q): expected error", name)
		}
	}
}

func TestValidateNewPassword(t *testing.T) {
	if err := ValidateNewPassword("secret1", "secret1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := ValidateNewPassword("short", "short"); err == nil {
		t.Error("expected error for password under 6 characters")
	} else if err.Error() != "Password must be at least 6 characters" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	if err := ValidateNewPassword("secret1", "secret2"); err == nil {
		t.Error("expected error for mismatched confirmation")
	} else if err.Error() != "Passwords don't match" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Jane@Example.COM "); got != "jane@example.com" {
		t.Errorf("NormalizeEmail: got %q", got)
	}
}
