// Package privacy seals post text at rest.
//
// Sealed values are stored as "enc:v1:<base64(nonce+box)>" so they can sit
// next to plaintext rows written before encryption was turned on.
package privacy

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	prefix    = "enc:v1:"
	keySize   = 32
	nonceSize = 24
)

// Sealer is what the store needs from the privacy layer.
type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(stored string) (string, error)
}

// SecretBox seals with NaCl secretbox. Safe for concurrent use.
type SecretBox struct {
	key [keySize]byte
}

// NewSecretBox derives the box key from master with HKDF so the key file
// itself is never used as a cipher key directly.
func NewSecretBox(master []byte, purpose string) (*SecretBox, error) {
	if len(master) < keySize {
		return nil, fmt.Errorf("privacy: master key too short (%d bytes)", len(master))
	}
	r := hkdf.New(sha256.New, master, []byte("persona-forge"), []byte(purpose))
	sb := &SecretBox{}
	if _, err := io.ReadFull(r, sb.key[:]); err != nil {
		return nil, fmt.Errorf("privacy: derive key: %w", err)
	}
	return sb, nil
}

func (s *SecretBox) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("privacy: generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return prefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open reverses Seal. Values without the prefix are returned unchanged.
func (s *SecretBox) Open(stored string) (string, error) {
	if !IsSealed(stored) {
		return stored, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, prefix))
	if err != nil {
		return "", fmt.Errorf("privacy: invalid base64: %w", err)
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", errors.New("privacy: sealed value too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])
	plain, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("privacy: authentication failed")
	}
	return string(plain), nil
}

func IsSealed(stored string) bool {
	return strings.HasPrefix(stored, prefix)
}

// LoadOrCreateKey reads the master key at path, generating and writing a
// fresh one (mode 0600) when the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) < keySize {
			return nil, fmt.Errorf("privacy: key file %s is truncated", path)
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("privacy: read key: %w", err)
	}

	key = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("privacy: generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("privacy: create key dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("privacy: write key: %w", err)
	}
	return key, nil
}
