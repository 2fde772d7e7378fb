// Package utils provides internal utility functions.
package utils

import (
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds. bcrypt ignores input past 72 bytes.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 72
)

// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// HashPasswordBcrypt returns the bcrypt hash written to cloud-init passwd.
func HashPasswordBcrypt(password string) (string, error) {
	if len(password) > MaxPasswordLen {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return string(hash), nil
}

// ValidatePassword checks a password typed at the prompt before it is
// hashed into the seed.
func ValidatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLen:
		return fmt.Errorf("password must be at least %d characters", MinPasswordLen)
	case len(password) > MaxPasswordLen:
		return ErrPasswordTooLong
	}
	for _, r := range password {
		if unicode.IsControl(r) {
			return errors.New("password must not contain control characters")
		}
	}
	return nil
}
