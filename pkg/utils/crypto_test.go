package utils

import (
	"errors"
	"testing"
)

func TestTokenCipher(t *testing.T) {
	c, err := NewTokenCipher([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewTokenCipher: %v", err)
	}

	sealed, err := c.Encrypt("IGQVJ-secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if sealed == "IGQVJ-secret" {
		t.Fatal("Encrypt returned the plaintext")
	}

	again, _ := c.Encrypt("IGQVJ-secret")
	if again == sealed {
		t.Error("two encryptions share a nonce")
	}

	plain, err := c.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plain != "IGQVJ-secret" {
		t.Errorf("Decrypt() = %q", plain)
	}

	if out, err := c.Encrypt(""); err != nil || out != "" {
		t.Errorf("empty token should stay empty, got %q, %v", out, err)
	}

	if _, err := c.Decrypt("AAAA"); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestNewTokenCipherRejectsBadKey(t *testing.T) {
	if _, err := NewTokenCipher([]byte("short")); err == nil {
		t.Error("expected error for a 5 byte key")
	}
}
