// Package vault derives a session key from the master password and seals
// account credentials with it. The key only ever lives in memory; the
// database keeps the KDF salt and a verifier blob.
package vault

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrLocked means no session key is available for a crypto operation.
	ErrLocked = errors.New("vault is locked: unlock with the master password first")

	// ErrWrongPassword means the derived key failed verifier decryption.
	ErrWrongPassword = errors.New("wrong master password")
)

// argon2id parameters. Changing these invalidates existing vaults.
const (
	saltSize    = 16
	argonTime   = 1
	argonMemory = 64 * 1024
	argonLanes  = 4
)

var verifierPlaintext = []byte("stremman-vault-v1")

// Session holds the in-memory key of an unlocked vault.
type Session struct {
	key []byte
}

// NewSalt returns a fresh random KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Initialize derives a key from password and returns the session plus a
// verifier blob the caller must persist alongside the salt.
func Initialize(password string, salt []byte) (*Session, []byte, error) {
	s := &Session{key: deriveKey(password, salt)}
	verifier, err := s.Encrypt(verifierPlaintext)
	if err != nil {
		return nil, nil, err
	}
	return s, verifier, nil
}

// Unlock derives a key from password and checks it against the stored
// verifier. Returns ErrWrongPassword when the verifier doesn't open.
func Unlock(password string, salt, verifier []byte) (*Session, error) {
	s := &Session{key: deriveKey(password, salt)}
	plain, err := s.Decrypt(verifier)
	if err != nil || string(plain) != string(verifierPlaintext) {
		return nil, ErrWrongPassword
	}
	return s, nil
}

func deriveKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonLanes, chacha20poly1305.KeySize)
}

// Encrypt seals plaintext with the session key. The random nonce is
// prefixed to the returned blob.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, ErrLocked
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. Fails with ErrLocked when no
// session key is held.
func (s *Session) Decrypt(ciphertext []byte) ([]byte, error) {
	if s == nil || s.key == nil {
		return nil, ErrLocked
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}
