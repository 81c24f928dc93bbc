package auth

import (
	"testing"
	"time"

	"github.com/propertyhub/maintenance-service/internal/domain"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)

	token, expiresAt, err := tm.GenerateToken("user-1", domain.RoleManager)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Errorf("expiresAt = %v, want in the future", expiresAt)
	}

	claims, err := tm.ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.SubjectID != "user-1" {
		t.Errorf("SubjectID = %s, want user-1", claims.SubjectID)
	}
	if claims.Role != domain.RoleManager {
		t.Errorf("Role = %s, want %s", claims.Role, domain.RoleManager)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", 60)
	other := NewTokenManager("secret-b", 60)

	token, _, err := tm.GenerateToken("user-1", domain.RoleTenant)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := other.ParseToken(token); err == nil {
		t.Error("ParseToken() with wrong secret succeeded, want error")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", 60)
	if _, err := tm.ParseToken("not.a.token"); err == nil {
		t.Error("ParseToken(garbage) succeeded, want error")
	}
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2!", 4)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "hunter2!" {
		t.Error("hash equals plaintext")
	}
	if err := ComparePassword(hash, "hunter2!"); err != nil {
		t.Errorf("ComparePassword() rejected the correct password: %v", err)
	}
	if err := ComparePassword(hash, "wrong"); err == nil {
		t.Error("ComparePassword() accepted a wrong password")
	}
}
