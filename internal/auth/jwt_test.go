package auth

import (
	"testing"
	"time"
)

func testJWTService() *JWTService {
	return NewJWTService(JWTConfig{
		SecretKey:     "test-secret-key",
		TokenDuration: 1 * time.Hour,
		Issuer:        "tradsys",
	})
}

func TestGenerateAndValidateTokenRoundTrips(t *testing.T) {
	svc := testJWTService()

	token, err := svc.GenerateToken("user123", "testuser", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected a non-empty token")
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user123" || claims.Username != "testuser" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.Subject != "user123" || claims.Issuer != "tradsys" {
		t.Fatalf("unexpected registered claims: %+v", claims.RegisteredClaims)
	}
	if !claims.ExpiresAt.Time.After(time.Now()) {
		t.Fatal("expected expiry in the future")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := testJWTService()
	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("expected an error for an unparseable token")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	signing := testJWTService()
	token, err := signing.GenerateToken("user123", "testuser", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	verifying := NewJWTService(JWTConfig{SecretKey: "different-secret", TokenDuration: time.Hour, Issuer: "tradsys"})
	if _, err := verifying.ValidateToken(token); err == nil {
		t.Fatal("expected signature verification to fail with a different secret")
	}
}

func TestValidateTokenRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(JWTConfig{SecretKey: "test-secret-key", TokenDuration: -time.Hour, Issuer: "tradsys"})
	token, err := svc.GenerateToken("user123", "testuser", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}
