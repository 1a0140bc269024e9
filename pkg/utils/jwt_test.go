package utils

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("secret", 42, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ValidateToken("secret", token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	id, err := claims.Workspace()
	if err != nil || id != 42 {
		t.Errorf("Workspace() = %d, %v, want 42", id, err)
	}

	if _, err := ValidateToken("other", token); err == nil {
		t.Error("expected signature check to fail with another secret")
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("secret", 1, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ValidateToken("secret", token); err == nil {
		t.Error("expected expired token to be rejected")
	}
}
