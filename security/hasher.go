// Package security provides the password hashing capability and the
// random code generator used for activation, reminder and persistence
// codes.
package security

import (
	"errors"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Hasher is the credential hashing capability. Check must take time
// independent of early mismatch.
type Hasher interface {
	Hash(plain string) (string, error)
	Check(plain, digest string) (bool, error)
}

// Argon2Hasher hashes passwords with argon2id. This is the default
// hasher.
type Argon2Hasher struct {
	cfg argon2.Config
}

// NewArgon2Hasher returns an argon2id hasher with the library defaults.
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{cfg: argon2.DefaultConfig()}
}

func (h *Argon2Hasher) Hash(plain string) (string, error) {
	encoded, err := h.cfg.HashEncoded([]byte(plain))
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func (h *Argon2Hasher) Check(plain, digest string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(plain), []byte(digest))
	if err != nil {
		// A malformed digest is a mismatch, not a fault; the dummy-check
		// path feeds arbitrary digests through here.
		if errors.Is(err, argon2.ErrDecodingFail) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// BcryptHasher is an alternative hasher for deployments migrating from
// bcrypt digests.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a bcrypt hasher. A cost of zero selects
// bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plain string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (h *BcryptHasher) Check(plain, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
