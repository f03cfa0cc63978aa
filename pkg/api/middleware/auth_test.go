package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marmos91/stager/pkg/api/auth"
)

func createTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		Secret: "test-secret-key-that-is-at-least-32-characters-long",
		Issuer: "test",
	})
	if err != nil {
		t.Fatalf("failed to create JWT service: %v", err)
	}
	return svc
}

func issue(t *testing.T, svc *auth.JWTService, role auth.Role) string {
	t.Helper()
	token, _, err := svc.GenerateToken("tester", role, time.Hour)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestGetClaimsFromContext(t *testing.T) {
	t.Run("no claims in context", func(t *testing.T) {
		if claims := GetClaimsFromContext(context.Background()); claims != nil {
			t.Error("expected nil claims for empty context")
		}
	})

	t.Run("claims present in context", func(t *testing.T) {
		expected := &auth.Claims{Role: auth.RoleAdmin}
		ctx := context.WithValue(context.Background(), claimsContextKey, expected)
		claims := GetClaimsFromContext(ctx)
		if claims == nil || claims.Role != auth.RoleAdmin {
			t.Fatalf("expected admin claims, got %+v", claims)
		}
	})

	t.Run("wrong type in context", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), claimsContextKey, "not-claims")
		if claims := GetClaimsFromContext(ctx); claims != nil {
			t.Error("expected nil claims for wrong type")
		}
	})
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header string
		token  string
		ok     bool
	}{
		{"missing", "", "", false},
		{"bearer", "Bearer abc", "abc", true},
		{"lowercase scheme", "bearer abc", "abc", true},
		{"basic", "Basic abc", "", false},
		{"no token", "Bearer ", "", false},
		{"no space", "Bearerabc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			token, ok := extractBearerToken(req)
			if token != tt.token || ok != tt.ok {
				t.Errorf("got (%q, %v), want (%q, %v)", token, ok, tt.token, tt.ok)
			}
		})
	}
}

func TestJWTAuth(t *testing.T) {
	svc := createTestJWTService(t)
	handler := JWTAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaimsFromContext(r.Context()) == nil {
			t.Error("expected claims in handler context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"garbage token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer " + issue(t, svc, auth.RoleReader), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
			if tt.want == http.StatusUnauthorized && rr.Header().Get("Content-Type") != "application/problem+json" {
				t.Errorf("expected problem response, got %q", rr.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	svc := createTestJWTService(t)
	handler := JWTAuth(svc)(RequireRole(auth.RoleOperator)(okHandler))

	tests := []struct {
		role auth.Role
		want int
	}{
		{auth.RoleReader, http.StatusForbidden},
		{auth.RoleOperator, http.StatusOK},
		{auth.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", nil)
			req.Header.Set("Authorization", "Bearer "+issue(t, svc, tt.role))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	rr := httptest.NewRecorder()
	RequireRole(auth.RoleReader)(okHandler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without claims, got %d", rr.Code)
	}
}
