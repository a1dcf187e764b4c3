package auth

import (
	"strings"
	"unicode/utf8"

	"github.com/satecha/satecha/internal/emailutil"
	"github.com/satecha/satecha/internal/identity"
)

const (
	MinPasswordLength = 6
	CodeLength        = 6
)

func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return validationError("Email is required")
	}
	if !emailutil.Plausible(email) {
		return validationError("Please enter a valid email address")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return validationError("Password must be at least 6 characters")
	}
	return nil
}

// ValidateCode only checks the length. The provider decides whether the
// code is right.
func ValidateCode(code string) error {
	if utf8.RuneCountInString(code) != CodeLength {
		return validationError("Please enter the 6-digit code")
	}
	return nil
}

func validatePurpose(purpose identity.Purpose) error {
	if !purpose.Valid() {
		return validationError("purpose must be signup or signin")
	}
	return nil
}
