package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/verimail/verimail/internal/core/domain"
)

// BcryptHasher implements ports.PasswordHasher on top of bcrypt. Each call
// to Hash draws a fresh salt, so equal passwords produce distinct digests.
type BcryptHasher struct {
	cost int
}

func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext could have produced digest. A mismatch
// is not an error; only a digest bcrypt cannot parse is.
func (h *BcryptHasher) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, domain.ErrInvalidDigest
	}
}
