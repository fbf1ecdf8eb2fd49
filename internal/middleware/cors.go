package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy returns the predicate shared by CORS and the WebSocket
// upgrader. An origin is allowed when it is listed exactly or when it is
// https on the base domain or one of its subdomains.
func OriginPolicy(allowed []string, baseDomain string) func(origin string) bool {
	exact := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		exact[strings.TrimSuffix(strings.ToLower(o), "/")] = struct{}{}
	}
	base := strings.ToLower(baseDomain)

	return func(origin string) bool {
		if _, ok := exact[strings.ToLower(origin)]; ok {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme != "https" || base == "" {
			return false
		}
		host := strings.ToLower(u.Hostname())
		return host == base || strings.HasSuffix(host, "."+base)
	}
}

// CORS answers preflight requests and echoes allowed origins.
func CORS(allowed []string, baseDomain string) gin.HandlerFunc {
	allow := OriginPolicy(allowed, baseDomain)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allow(origin) {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			h.Add("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// TokenFromQuery copies ?<param>= into the Authorization header when the
// header is absent. Browsers cannot set headers on WebSocket handshakes.
func TokenFromQuery(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if tok := c.Query(param); tok != "" {
				c.Request.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		c.Next()
	}
}
