package auth

import (
	"testing"
	"time"

	"github.com/verityhq/verity/internal/models"
)

func testUser() *models.User {
	teamID := int64(9)
	return &models.User{
		ID:       42,
		Username: "alice",
		Role:     models.RoleLead,
		TeamID:   &teamID,
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour)

	token, err := svc.GenerateToken(testUser())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 {
		t.Fatalf("claims.UserID = %d, want 42", claims.UserID)
	}
	if claims.Username != "alice" {
		t.Fatalf("claims.Username = %q, want %q", claims.Username, "alice")
	}
	if claims.TeamID != 9 {
		t.Fatalf("claims.TeamID = %d, want 9", claims.TeamID)
	}
	if claims.Role != models.RoleLead {
		t.Fatalf("claims.Role = %q, want lead", claims.Role)
	}
}

func TestGenerateTokenNoTeam(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour)

	u := testUser()
	u.TeamID = nil
	token, err := svc.GenerateToken(u)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.TeamID != 0 {
		t.Fatalf("claims.TeamID = %d, want 0 for orphaned user", claims.TeamID)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	svc := NewService("test-secret-1234567890", -time.Minute)

	token, err := svc.GenerateToken(testUser())
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	_, err = svc.ValidateToken(token)
	if err != ErrTokenExpired {
		t.Fatalf("ValidateToken error = %v, want %v", err, ErrTokenExpired)
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := NewService("test-secret-1234567890", time.Hour)

	hash, err := svc.HashPassword("correct-horse-battery-staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if err := svc.CheckPassword(hash, "correct-horse-battery-staple"); err != nil {
		t.Fatalf("CheckPassword(valid): %v", err)
	}

	if err := svc.CheckPassword(hash, "wrong-password"); err != ErrInvalidCredentials {
		t.Fatalf("CheckPassword(invalid) error = %v, want %v", err, ErrInvalidCredentials)
	}
}
