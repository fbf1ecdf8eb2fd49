package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	userID, projectID := uuid.New(), uuid.New()

	token, err := GenerateToken(userID, projectID, "ana@example.com", RoleOwner, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != userID || claims.ProjectID != projectID || claims.Role != RoleOwner {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Email != "ana@example.com" {
		t.Errorf("email = %q", claims.Email)
	}
}

func TestParseTokenRejects(t *testing.T) {
	good, err := GenerateToken(uuid.New(), uuid.New(), "", RoleStaff, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, err := GenerateToken(uuid.New(), uuid.New(), "", RoleStaff, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	badRole, err := GenerateToken(uuid.New(), uuid.New(), "", Role("admin"), testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Role: RoleOwner}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	tests := []struct {
		name, token, secret string
	}{
		{"wrong secret", good, "other-secret"},
		{"expired", expired, testSecret},
		{"unknown role", badRole, testSecret},
		{"alg none", unsigned, testSecret},
		{"garbage", "not-a-token", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestRoleIsStaff(t *testing.T) {
	if !RoleOwner.IsStaff() || !RoleStaff.IsStaff() || RoleCustomer.IsStaff() {
		t.Error("IsStaff mismatch")
	}
}
