package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/auth"
)

// Context keys for storing claims in gin.Context. Handlers read them back
// through the typed getters below.
const (
	ContextKeyUserID    = "user_id"
	ContextKeyProjectID = "project_id"
	ContextKeyEmail     = "email"
	ContextKeyRole      = "role"
)

// AuthMiddleware returns a Gin middleware that requires a valid JWT.
//
// When the tenant middleware already resolved a tenant from the host, the
// token must belong to that same project: a token for one salon never
// works on another salon's subdomain.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}
		if !authenticate(c, header, secret) {
			return
		}
		c.Next()
	}
}

// OptionalAuth reads a JWT when one is sent and lets anonymous requests
// through. A malformed or expired token is still refused.
func OptionalAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header != "" && !authenticate(c, header, secret) {
			return
		}
		c.Next()
	}
}

// authenticate validates the bearer token and stores its claims. It aborts
// the request and returns false on failure.
func authenticate(c *gin.Context, header, secret string) bool {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid authorization format, expected: Bearer <token>",
		})
		return false
	}

	claims, err := auth.ParseToken(parts[1], secret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return false
	}

	if t, ok := GetTenant(c); ok && claims.ProjectID != t.ID {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "token does not belong to this project",
			"code":  "forbidden",
		})
		return false
	}

	c.Set(ContextKeyUserID, claims.UserID)
	c.Set(ContextKeyProjectID, claims.ProjectID)
	c.Set(ContextKeyEmail, claims.Email)
	c.Set(ContextKeyRole, claims.Role)
	return true
}

// RequireRole lets the request through only when the authenticated role is
// one of roles. It must run after AuthMiddleware.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "insufficient permissions",
			"code":  "forbidden",
		})
	}
}

func GetUserID(c *gin.Context) uuid.UUID {
	val, exists := c.Get(ContextKeyUserID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// GetProjectID returns the tenant resolved from the host, falling back to
// the project claim of the token. uuid.Nil means neither is known.
func GetProjectID(c *gin.Context) uuid.UUID {
	if t, ok := GetTenant(c); ok {
		return t.ID
	}
	val, exists := c.Get(ContextKeyProjectID)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

func GetEmail(c *gin.Context) string {
	val, exists := c.Get(ContextKeyEmail)
	if !exists {
		return ""
	}
	email, ok := val.(string)
	if !ok {
		return ""
	}
	return email
}

// GetRole returns "" for anonymous requests.
func GetRole(c *gin.Context) auth.Role {
	val, exists := c.Get(ContextKeyRole)
	if !exists {
		return ""
	}
	role, ok := val.(auth.Role)
	if !ok {
		return ""
	}
	return role
}
