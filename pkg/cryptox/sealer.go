package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Configuration for Argon2id key derivation.
const (
	memory      = 19 * 1024 // Memory usage in KiB (19 MiB)
	iterations  = 2         // Iteration count
	parallelism = 1         // Number of threads
	keyLength   = 32        // AES-256
	saltLength  = 16        // Length of the salt
)

// sealedMagic prefixes every sealed blob so Open can tell sealed data from
// plain JSON written before a passphrase was configured.
var sealedMagic = []byte("mcs1")

var (
	ErrNoPassphrase = errors.New("cryptox: empty passphrase")
	ErrNotSealed    = errors.New("cryptox: data is not sealed")
	ErrOpen         = errors.New("cryptox: decryption failed")
)

// Sealer encrypts small blobs (stored profiles) under a passphrase. Each Seal
// derives a fresh key from a random salt with Argon2id and encrypts with
// AES-256-GCM.
//
// Output layout: [magic][16-byte salt][12-byte nonce][ciphertext + 16-byte tag]
type Sealer struct {
	passphrase []byte
}

// NewSealer returns a Sealer for passphrase.
func NewSealer(passphrase string) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrNoPassphrase
	}
	return &Sealer{passphrase: []byte(passphrase)}, nil
}

func (s *Sealer) deriveKey(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, iterations, memory, parallelism, keyLength)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Seal encrypts and authenticates plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+saltLength+len(nonce)+len(plaintext)+gcm.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)

	// The magic and salt are bound as additional data so they can't be swapped
	return gcm.Seal(out, nonce, plaintext, out[:len(sealedMagic)+saltLength]), nil
}

// Open reverses Seal. A wrong passphrase or tampered data yields ErrOpen.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !IsSealed(sealed) {
		return nil, ErrNotSealed
	}

	header := len(sealedMagic) + saltLength
	if len(sealed) < header {
		return nil, ErrNotSealed
	}
	salt := sealed[len(sealedMagic):header]

	gcm, err := newGCM(s.deriveKey(salt))
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < header+nonceSize+gcm.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrOpen)
	}

	nonce := sealed[header : header+nonceSize]
	ciphertext := sealed[header+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, sealed[:header])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	return plaintext, nil
}

// IsSealed reports whether data carries the sealed prefix.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedMagic)
}
