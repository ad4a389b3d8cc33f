package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// BCryptCost is the default cost parameter for bcrypt hashing
const BCryptCost = 12

// Hasher hashes and verifies passwords
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// BcryptHasher implements Hasher with golang.org/x/crypto/bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher; cost outside bcrypt's range falls back to BCryptCost
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = BCryptCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash hashes a password with bcrypt
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports whether password matches hash
func (h *BcryptHasher) Verify(password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
