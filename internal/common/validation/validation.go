package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxNameLength      = 128
	MaxEmailLength     = 254
	MaxReferenceLength = 256
	// Bot API limit for a single sendMessage text
	MaxMessageLength = 4096
)

// Loose shape check; deliverability is not our concern.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidateName checks a display name collected at signup.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}

// ValidateEmail checks an email address. An empty address is allowed.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email cannot exceed %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("must be an email address")
	}
	return nil
}

// ValidateReference checks a payment reference (UTR, tx hash).
func ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("reference cannot be empty")
	}
	if len(ref) > MaxReferenceLength {
		return fmt.Errorf("reference cannot exceed %d characters", MaxReferenceLength)
	}
	return nil
}

// ValidateMessageText checks text that will be sent through the Bot API.
func ValidateMessageText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return fmt.Errorf("text cannot exceed %d characters", MaxMessageLength)
	}
	return nil
}

// ValidatePositiveInt проверяет, что число положительное
func ValidatePositiveInt(value int64, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	return nil
}
