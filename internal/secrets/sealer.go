// Package secrets seals secret connection settings at rest and masks them
// in API responses.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// Mask replaces secret values in responses. Sending it back on update means
// "keep the stored value".
const Mask = "**********"

// sealedPrefix marks values that are already sealed.
const sealedPrefix = "sealed:v1:"

// Sealer provides AES-256-GCM sealing of secret strings.
type Sealer struct {
	gcm cipher.AEAD
}

// NewSealer creates a Sealer with the given 32-byte key.
// If the key is empty, secrets are stored as plaintext (still masked on read).
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) == 0 {
		return &Sealer{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Sealer{gcm: gcm}, nil
}

// ParseKey accepts a 64-character hex or a base64 encoding of a 32-byte key.
// An empty string yields a nil key.
func ParseKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) == 64 {
		if key, err := hex.DecodeString(s); err == nil {
			return key, nil
		}
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("encryption key is neither hex nor base64")
	}
	return key, nil
}

// Enabled reports whether values are actually encrypted.
func (s *Sealer) Enabled() bool {
	return s.gcm != nil
}

// Seal encrypts plaintext. Already sealed values are returned unchanged.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s.gcm == nil || strings.HasPrefix(plaintext, sealedPrefix) {
		return plaintext, nil
	}
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed value. Unsealed values are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if s.gcm == nil {
		return "", fmt.Errorf("sealed value found but no encryption key configured")
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode base64: %w", err)
	}
	nonceSize := s.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// SealDetails returns a copy of details with the string values of keys sealed.
func (s *Sealer) SealDetails(details dbadmin.Details, keys []string) (dbadmin.Details, error) {
	out := details.Clone()
	for _, k := range keys {
		v, ok := out[k].(string)
		if !ok || v == "" {
			continue
		}
		sealed, err := s.Seal(v)
		if err != nil {
			return nil, fmt.Errorf("seal %s: %w", k, err)
		}
		out[k] = sealed
	}
	return out, nil
}

// OpenDetails returns a copy of details with the values of keys decrypted.
func (s *Sealer) OpenDetails(details dbadmin.Details, keys []string) (dbadmin.Details, error) {
	out := details.Clone()
	for _, k := range keys {
		v, ok := out[k].(string)
		if !ok {
			continue
		}
		plain, err := s.Open(v)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", k, err)
		}
		out[k] = plain
	}
	return out, nil
}

// MaskDetails returns a copy of details with non-empty values of keys masked.
func MaskDetails(details dbadmin.Details, keys []string) dbadmin.Details {
	out := details.Clone()
	for _, k := range keys {
		if v, ok := out[k]; ok && v != nil && v != "" {
			out[k] = Mask
		}
	}
	return out
}

// KeepMasked copies the stored value of every key whose incoming value is
// still the mask.
func KeepMasked(incoming, stored dbadmin.Details, keys []string) dbadmin.Details {
	out := incoming.Clone()
	for _, k := range keys {
		if out[k] == Mask {
			if v, ok := stored[k]; ok {
				out[k] = v
			} else {
				delete(out, k)
			}
		}
	}
	return out
}
