package vault

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// KeySize is the size of the encryption key (32 bytes for NaCl secretbox)
	KeySize = 32
	// NonceSize is the size of the nonce (24 bytes for NaCl secretbox)
	NonceSize = 24
	// SaltSize is the Argon2id salt length stored in each envelope
	SaltSize = 16
)

// magic prefixes every sealed envelope: magic | salt | nonce | box
var magic = []byte("OTPDECK1")

var (
	// ErrNotSealed is returned when data lacks the envelope header
	ErrNotSealed = errors.New("data is not a sealed envelope")
	// ErrDecrypt is returned for a wrong passphrase or corrupted data
	ErrDecrypt = errors.New("decryption failed (wrong passphrase or corrupted data)")
)

// KDFParams are the Argon2id cost parameters
type KDFParams struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultKDFParams follows the x/crypto/argon2 recommendation for interactive use
func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 1, Memory: 64 * 1024, Threads: 4}
}

// Vault seals and opens byte blobs with a passphrase-derived secretbox key.
// The derived key is cached per salt so repeated writes skip the KDF.
type Vault struct {
	passphrase []byte
	params     KDFParams

	mu   sync.Mutex
	salt []byte
	key  *[KeySize]byte
}

// New creates a vault for the passphrase
func New(passphrase string, params KDFParams) (*Vault, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase must not be empty")
	}
	return &Vault{passphrase: []byte(passphrase), params: params}, nil
}

// IsSealed reports whether data carries the envelope header
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, magic)
}

// Seal encrypts plaintext into an envelope
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.key == nil {
		salt := make([]byte, SaltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		v.salt = salt
		v.key = v.derive(salt)
	}

	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(magic)+SaltSize+NonceSize+len(plaintext)+secretbox.Overhead)
	out = append(out, magic...)
	out = append(out, v.salt...)
	out = append(out, nonce[:]...)
	return secretbox.Seal(out, plaintext, &nonce, v.key), nil
}

// Open decrypts an envelope produced by Seal
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}
	header := len(magic) + SaltSize + NonceSize
	if len(sealed) < header+secretbox.Overhead {
		return nil, fmt.Errorf("sealed data too short (minimum %d bytes)", header+secretbox.Overhead)
	}

	salt := sealed[len(magic) : len(magic)+SaltSize]
	var nonce [NonceSize]byte
	copy(nonce[:], sealed[len(magic)+SaltSize:header])

	v.mu.Lock()
	key := v.key
	if key == nil || !bytes.Equal(v.salt, salt) {
		key = v.derive(salt)
		// Reuse the file's salt for subsequent writes
		v.salt = append([]byte(nil), salt...)
		v.key = key
	}
	v.mu.Unlock()

	plaintext, ok := secretbox.Open(nil, sealed[header:], &nonce, key)
	if !ok {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func (v *Vault) derive(salt []byte) *[KeySize]byte {
	raw := argon2.IDKey(v.passphrase, salt, v.params.Time, v.params.Memory, v.params.Threads, KeySize)
	var key [KeySize]byte
	copy(key[:], raw)
	return &key
}
