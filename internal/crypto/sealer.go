package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrSealedFormat is returned when a sealed value is structurally invalid
	ErrSealedFormat = errors.New("invalid sealed value format")
	// ErrSealedInvalid is returned when a sealed value fails authentication
	ErrSealedInvalid = errors.New("invalid sealed value")
)

// KeySize is the required key length for the sealer (XChaCha20-Poly1305).
const KeySize = chacha20poly1305.KeySize

// maxSealedLen bounds the amount of attacker-controlled data we will
// decode for a sealed value. Browsers cap cookie values around 4KB,
// but we enforce our own limit.
const maxSealedLen = 8192

// Sealer provides authenticated encryption for values that leave the server
// boundary (session cookies). Values are sealed with XChaCha20-Poly1305 and
// carry a key ID so keys can be rotated without invalidating live sessions.
//
// Wire format: [keyID] "." base64url(nonce || ciphertext)
type Sealer struct {
	keyID string
	keys  map[string][]byte
}

// NewSealer creates a Sealer. keyID selects the key used for sealing;
// every key in keys is accepted when opening.
func NewSealer(keyID string, keys map[string][]byte) (*Sealer, error) {
	if len(keys) == 0 {
		return nil, errors.New("at least one key is required")
	}
	if _, ok := keys[keyID]; !ok {
		return nil, fmt.Errorf("sealing key %q not found in key set", keyID)
	}
	for id, k := range keys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("key %q must be exactly %d bytes (got %d)", id, KeySize, len(k))
		}
	}
	return &Sealer{keyID: keyID, keys: keys}, nil
}

// Seal encrypts plaintext bound to the additional authenticated data aad.
func (s *Sealer) Seal(plaintext, aad []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(s.keys[s.keyID])
	if err != nil {
		return "", fmt.Errorf("failed to create AEAD: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nonce, nonce, plaintext, aad)
	return s.keyID + "." + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open authenticates and decrypts a sealed value. The aad must match the
// value used at seal time.
func (s *Sealer) Open(value string, aad []byte) ([]byte, error) {
	if len(value) == 0 || len(value) > maxSealedLen {
		return nil, ErrSealedFormat
	}
	keyID, encoded, ok := strings.Cut(value, ".")
	if !ok || keyID == "" || encoded == "" {
		return nil, ErrSealedFormat
	}
	key, ok := s.keys[keyID]
	if !ok {
		return nil, ErrSealedInvalid
	}

	sealed, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrSealedFormat
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AEAD: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrSealedFormat
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrSealedInvalid
	}
	return plaintext, nil
}
