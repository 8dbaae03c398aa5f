package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

const (
	maxNameLength   = 200
	maxReasonLength = 500

	// MaxAmount is the largest value a numeric(15,0) money column can hold.
	MaxAmount int64 = 999_999_999_999_999
)

// ValidateEmail checks if an email address is valid.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

// ValidatePositiveAmount checks that an amount is positive (in minor units).
func ValidatePositiveAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive, got %d", amount)
	}
	if amount > MaxAmount {
		return fmt.Errorf("amount exceeds maximum of %d", MaxAmount)
	}
	return nil
}

// ValidateName checks player and preset names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("name exceeds %d characters", maxNameLength)
	}
	return nil
}

// ValidateReason checks a fine reason.
func ValidateReason(reason string) error {
	if strings.TrimSpace(reason) == "" {
		return fmt.Errorf("reason is required")
	}
	if utf8.RuneCountInString(reason) > maxReasonLength {
		return fmt.Errorf("reason exceeds %d characters", maxReasonLength)
	}
	return nil
}
