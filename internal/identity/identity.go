// Package identity talks to the auth provider: password sign-in, account
// creation, verification links, ID token verification and revocation.
package identity

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Auth errors, shared by every provider.
var (
	ErrInvalidCredential = errors.New("invalid credential")
	ErrEmailExists       = errors.New("email already exists")
	ErrWeakPassword      = errors.New("password too weak")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidToken      = errors.New("invalid, expired or revoked id token")
	ErrUserNotFound      = errors.New("user not found")
)

// MinPasswordLength is the shortest password the provider accepts.
const MinPasswordLength = 6

var validate = validator.New()

// ValidateEmail checks the address format the way the provider does: a bare
// address whose domain has a dot.
func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email"); err != nil {
		return ErrInvalidEmail
	}
	if !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return ErrInvalidEmail
	}
	return nil
}

// ValidatePassword enforces the provider's minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
