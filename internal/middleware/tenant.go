package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/meetlines/meetlines/internal/tenancy"
	"go.uber.org/zap"
)

const (
	ContextKeyTenant = "tenant"

	tenantNotFoundBody = "Tenant not found"
)

// TenantRecorder counts resolution outcomes.
type TenantRecorder interface {
	TenantOutcome(outcome string)
}

// TenantMiddleware resolves the request's tenant from Host, path and Origin.
//
// A resolved tenant is attached to c.Request's context (for the core) and
// to the gin context (for handlers). A rejected host ends the request with
// a plain-text 404. Every other outcome lets the request continue without
// a tenant. A request that already carries a tenant is left untouched, so
// mounting the middleware twice resolves once.
func TenantMiddleware(resolver *tenancy.Resolver, recorder TenantRecorder, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if t, ok := tenancy.FromContext(c.Request.Context()); ok {
			c.Set(ContextKeyTenant, t)
			c.Next()
			return
		}

		out := resolver.Resolve(c.Request.Context(), tenancy.Request{
			Host:   c.Request.Host,
			Path:   c.Request.URL.Path,
			Origin: c.GetHeader("Origin"),
		})
		if recorder != nil {
			outcome := out.Kind.String()
			if out.Err != nil {
				outcome = tenancy.ReasonLookupError
			}
			recorder.TenantOutcome(outcome)
		}

		switch out.Kind {
		case tenancy.Resolved:
			c.Request = c.Request.WithContext(tenancy.WithTenant(c.Request.Context(), out.Tenant))
			c.Set(ContextKeyTenant, out.Tenant)
			logger.Debug("tenant resolved",
				zap.String("subdomain", out.Tenant.Subdomain),
				zap.String("source", out.Reason),
			)

		case tenancy.Rejected:
			logger.Info("tenant not found",
				zap.String("host", c.Request.Host),
				zap.String("candidate", out.Candidate),
				zap.String("reason", out.Reason),
			)
			c.Data(http.StatusNotFound, "text/plain; charset=utf-8", []byte(tenantNotFoundBody))
			c.Abort()
			return

		default:
			if out.Err != nil {
				logger.Error("tenant lookup failed, continuing without tenant",
					zap.String("candidate", out.Candidate),
					zap.Error(out.Err),
				)
			}
		}

		c.Next()
	}
}

// RequireTenant rejects requests that reached a tenant-scoped route without
// a resolved tenant and without a project claim to fall back on.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetProjectID(c) == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "tenant could not be determined from the request host",
				"code":  "validation_error",
			})
			return
		}
		c.Next()
	}
}

// GetTenant returns the resolved tenant, if any.
func GetTenant(c *gin.Context) (tenancy.Tenant, bool) {
	val, exists := c.Get(ContextKeyTenant)
	if !exists {
		return tenancy.Tenant{}, false
	}
	t, ok := val.(tenancy.Tenant)
	return t, ok
}
