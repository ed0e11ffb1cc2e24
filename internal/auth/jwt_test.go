package auth

import (
	"testing"
	"time"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, expiresAt, err := GenerateToken(42, "test-secret", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if time.Until(expiresAt) < 55*time.Minute {
		t.Errorf("expiresAt too soon: %v", expiresAt)
	}

	userID, err := ParseToken(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateToken(7, "secret-a", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, "secret-b"); err == nil {
		t.Fatal("expected signature mismatch error")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	token, _, err := GenerateToken(7, "secret", -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(token, "secret"); err == nil {
		t.Fatal("expected expiry error")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	if _, _, err := GenerateToken(1, "", time.Hour); err == nil {
		t.Fatal("expected error for empty secret")
	}
}
