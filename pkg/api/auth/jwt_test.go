package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "test-secret-key-must-be-32-chars!"

func newTestService(t *testing.T) *JWTService {
	t.Helper()
	service, err := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "test-issuer"})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	return service
}

func TestNewJWTService_ShortSecret(t *testing.T) {
	for _, secret := range []string{"", "short"} {
		if _, err := NewJWTService(JWTConfig{Secret: secret}); !errors.Is(err, ErrInvalidSecretLength) {
			t.Errorf("secret %q: expected ErrInvalidSecretLength, got %v", secret, err)
		}
	}
}

func TestNewJWTService_Defaults(t *testing.T) {
	service, err := NewJWTService(JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if service.TokenDuration() != 30*24*time.Hour {
		t.Errorf("Expected default duration of 30 days, got %v", service.TokenDuration())
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	service := newTestService(t)

	token, expiresAt, err := service.GenerateToken("resolve-agent", RoleOperator, time.Hour)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if token == "" {
		t.Fatal("Expected non-empty token")
	}
	if time.Until(expiresAt) > time.Hour || time.Until(expiresAt) < 59*time.Minute {
		t.Errorf("Unexpected expiry: %v", expiresAt)
	}

	claims, err := service.ValidateToken(token)
	if err != nil {
		t.Fatalf("Expected valid token, got: %v", err)
	}
	if claims.Subject != "resolve-agent" {
		t.Errorf("Expected subject 'resolve-agent', got %q", claims.Subject)
	}
	if claims.Role != RoleOperator {
		t.Errorf("Expected role operator, got %q", claims.Role)
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("Expected issuer 'test-issuer', got %q", claims.Issuer)
	}
}

func TestGenerateToken_Rejects(t *testing.T) {
	service := newTestService(t)

	if _, _, err := service.GenerateToken("", RoleReader, 0); err == nil {
		t.Error("Expected error for empty subject")
	}
	if _, _, err := service.GenerateToken("someone", Role("root"), 0); err == nil {
		t.Error("Expected error for unknown role")
	}
}

func TestValidateToken_Expired(t *testing.T) {
	service := newTestService(t)

	token, _, err := service.GenerateToken("someone", RoleReader, time.Nanosecond)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)

	if _, err := service.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Expected ErrExpiredToken, got: %v", err)
	}
}

func TestValidateToken_WrongSecretOrIssuer(t *testing.T) {
	service := newTestService(t)
	token, _, _ := service.GenerateToken("someone", RoleAdmin, 0)

	other, _ := NewJWTService(JWTConfig{Secret: "another-secret-key-of-32-chars!!", Issuer: "test-issuer"})
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong secret, got: %v", err)
	}

	foreign, _ := NewJWTService(JWTConfig{Secret: testSecret, Issuer: "someone-else"})
	if _, err := foreign.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for wrong issuer, got: %v", err)
	}

	if _, err := service.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for garbage, got: %v", err)
	}
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role, required Role
		want           bool
	}{
		{RoleReader, RoleReader, true},
		{RoleReader, RoleOperator, false},
		{RoleOperator, RoleReader, true},
		{RoleOperator, RoleAdmin, false},
		{RoleAdmin, RoleOperator, true},
		{Role("guest"), RoleReader, false},
	}
	for _, tt := range tests {
		if got := tt.role.Allows(tt.required); got != tt.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.role, tt.required, got, tt.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, r := range AllRoles() {
		got, err := ParseRole(string(r))
		if err != nil || got != r {
			t.Errorf("ParseRole(%q) = %q, %v", r, got, err)
		}
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Error("Expected error for unknown role")
	}
}
