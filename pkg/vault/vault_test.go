package vault

import (
	"errors"
	"testing"
)

func TestSealRoundtrip(t *testing.T) {
	salt, err := NewSalt()
	if err != nil {
		t.Fatalf("NewSalt: %v", err)
	}
	session, verifier, err := Initialize("correct horse", salt)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	sealed, err := session.Encrypt([]byte("authkey-123"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	plain, err := session.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != "authkey-123" {
		t.Fatalf("roundtrip mismatch: %q", plain)
	}

	// A fresh unlock with the right password opens the same blob.
	reopened, err := Unlock("correct horse", salt, verifier)
	if err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	plain2, err := reopened.Decrypt(sealed)
	if err != nil || string(plain2) != "authkey-123" {
		t.Fatalf("reopened decrypt failed: %v %q", err, plain2)
	}
}

func TestUnlockWrongPassword(t *testing.T) {
	salt, _ := NewSalt()
	_, verifier, err := Initialize("right", salt)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if _, err := Unlock("wrong", salt, verifier); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
}

func TestLockedSession(t *testing.T) {
	var s *Session
	if _, err := s.Decrypt([]byte("anything")); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if _, err := s.Encrypt([]byte("anything")); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}
