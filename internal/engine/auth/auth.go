package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// UnauthorizedError indicates a request without a usable session.
type UnauthorizedError struct {
	Verb   string
	Detail string
}

func (e UnauthorizedError) Error() string {
	return fmt.Sprintf("Cannot %s - %s", e.Verb, e.Detail)
}

// ForbiddenError indicates a denied permission. Detail is the denial
// reason when the decision gave one.
type ForbiddenError struct {
	Verb   string
	Detail string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("Cannot %s - %s", e.Verb, e.Detail)
}

// Forbidden builds a ForbiddenError preferring reason over fallback.
func Forbidden(verb, reason, fallback string) ForbiddenError {
	if reason == "" {
		reason = fallback
	}
	return ForbiddenError{Verb: verb, Detail: reason}
}

// PasswordCost is the bcrypt cost used for stored credentials.
var PasswordCost = bcrypt.DefaultCost

func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), nil
}

func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
