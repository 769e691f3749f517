// Package crypto seals note bodies at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// AES-256 key length
const keyLength = 32

// Stored values are tagged by prefix. Untagged values are plaintext;
// plaintext that itself starts with tagPrefix is stored behind plainPrefix.
const (
	tagPrefix    = "enc:"
	sealedPrefix = "enc:v1:"
	plainPrefix  = "enc:none:"
)

// ErrInvalidKey is returned for keys that are not 32 bytes.
var ErrInvalidKey = fmt.Errorf("invalid key length: must be %d bytes for AES-256", keyLength)

// Sealer encrypts and decrypts strings. A nil *Sealer passes values through.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a Sealer from a raw 32 byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != keyLength {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerFromBase64 decodes a base64 key. An empty key yields a nil
// Sealer, which leaves values unencrypted.
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	if encoded == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plainText. The empty string stays empty. A nil Sealer
// stores plaintext, escaping values that look tagged.
func (s *Sealer) Seal(plainText string) (string, error) {
	if plainText == "" {
		return plainText, nil
	}
	if s == nil {
		if strings.HasPrefix(plainText, tagPrefix) {
			return plainPrefix + plainText, nil
		}
		return plainText, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plainText), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Untagged values are returned
// unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if strings.HasPrefix(value, plainPrefix) {
		return strings.TrimPrefix(value, plainPrefix), nil
	}
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s == nil {
		return "", errors.New("sealed value but no encryption key configured")
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("invalid ciphertext: too short to contain nonce")
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plain), nil
}
