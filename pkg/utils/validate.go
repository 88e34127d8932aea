package utils

import (
	"errors"
	"net/mail"
	"strings"
)

const minPasswordLength = 6

// ValidateEmail checks that the address parses as a bare RFC 5322 address.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("Invalid email address")
	}
	return nil
}

// ValidateFullName requires at least 2 characters after trimming.
func ValidateFullName(name string) error {
	if len(strings.TrimSpace(name)) < 2 {
		return errors.New("Name must be at least 2 characters")
	}
	return nil
}

// ValidateNewPassword enforces the minimum length and the confirmation match.
func ValidateNewPassword(newPassword, confirmPassword string) error {
	if len(newPassword) < minPasswordLength {
		return errors.New("Password must be at least 6 characters")
	}
	if newPassword != confirmPassword {
		return errors.New("Passwords don't match")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email for case-insensitive lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
