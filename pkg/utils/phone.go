package utils

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxPhoneLength bounds the stored phone text
const MaxPhoneLength = 32

var (
	ErrPhoneEmpty   = errors.New("phone number cannot be empty")
	ErrPhoneTooLong = errors.New("phone number is too long")
)

// CleanPhoneNumber trims surrounding whitespace. The number is otherwise kept
// as typed: "0901 234 567" and "0901234567" are different visitors.
func CleanPhoneNumber(phone string) (string, error) {
	cleaned := strings.TrimSpace(phone)
	if cleaned == "" {
		return "", ErrPhoneEmpty
	}
	if utf8.RuneCountInString(cleaned) > MaxPhoneLength {
		return "", ErrPhoneTooLong
	}
	return cleaned, nil
}

// MaskPhoneNumber hides all but the last three characters for logging
// Example: "0909300861" -> "*******861"
func MaskPhoneNumber(phone string) string {
	runes := []rune(phone)
	if len(runes) <= 3 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-3) + string(runes[len(runes)-3:])
}
