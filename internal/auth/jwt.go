package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role says what the bearer may do inside a project.
type Role string

const (
	// RoleOwner manages the project: staff, services, bot configuration.
	RoleOwner Role = "owner"
	// RoleStaff runs the calendar: bookings, confirmations, cancellations.
	RoleStaff Role = "staff"
	// RoleCustomer is an end customer. Customer tokens are minted by the
	// messaging bot with the shared secret; UserID is then the customer id.
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleStaff, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether the role acts on behalf of the business.
func (r Role) IsStaff() bool {
	return r == RoleOwner || r == RoleStaff
}

// Claims is the payload inside every JWT token.
//
// ProjectID is uuid.Nil for an owner token that has not picked a project
// yet (right after registration without a project, for example).
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Email     string    `json:"email,omitempty"`
	Role      Role      `json:"role"`
	jwt.RegisteredClaims
}

const issuer = "meetlines"

// GenerateToken creates a signed HS256 JWT.
func GenerateToken(userID, projectID uuid.UUID, email string, role Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID:    userID,
		ProjectID: projectID,
		Email:     email,
		Role:      role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a JWT string and extracts the claims.
//
// It verifies:
//  1. The signature matches our secret.
//  2. The token hasn't expired.
//  3. The signing method is HMAC, so "none" and RSA tokens are refused.
//  4. The role is one we know.
func ParseToken(tokenString, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		},
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}

	return claims, nil
}
