package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrWrongPassword is returned when a password does not match the stored
// hash. Callers should present it the same way as "no such user" so the
// login endpoint does not reveal which accounts exist.
var ErrWrongPassword = errors.New("auth: wrong password")

// PasswordService wraps bcrypt hashing. bcrypt is deliberately slow and
// salts every hash, so equal passwords still produce different hashes.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the default bcrypt cost.
func NewPasswordService() *PasswordService {
	return newPasswordServiceWithCost(bcrypt.DefaultCost)
}

// newPasswordServiceWithCost exists so tests can use the minimum cost and
// run in milliseconds instead of ~250ms per hash.
func newPasswordServiceWithCost(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash generates a bcrypt hash from a plaintext password.
func (s *PasswordService) Hash(password string) (string, error) {
	if len(password) < 8 {
		return "", errors.New("auth: password must be at least 8 characters")
	}
	// bcrypt silently truncates input at 72 bytes; reject instead.
	if len(password) > 72 {
		return "", errors.New("auth: password must be at most 72 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hash), nil
}

// Compare checks a plaintext password against a stored hash. The comparison
// inside bcrypt is constant-time.
func (s *PasswordService) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrWrongPassword
		}
		return fmt.Errorf("auth: comparing password: %w", err)
	}
	return nil
}
