package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for locally stored passwords.
const (
	argonTime    uint32 = 1
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 2
	argonKeyLen  uint32 = 32
	saltLength          = 16
)

// PasswordHash is a salted Argon2id digest.
type PasswordHash struct {
	Salt []byte
	Hash []byte
}

// HashPassword derives a PasswordHash with a fresh random salt.
func HashPassword(password string) (PasswordHash, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return PasswordHash{}, err
	}
	return PasswordHash{Salt: salt, Hash: argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)}, nil
}

// Matches reports whether password produces the stored digest.
func (p PasswordHash) Matches(password string) bool {
	got := argon2.IDKey([]byte(password), p.Salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, p.Hash) == 1
}
