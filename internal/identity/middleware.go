package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const ctxKey = "identity"

// RequireAuth rejects requests without a valid bearer token and stores the
// identity on the gin context for handlers downstream.
func RequireAuth(p *Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		if raw == "" || raw == c.GetHeader("Authorization") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := p.Authenticate(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		c.Set(ctxKey, id)
		c.Next()
	}
}

// RequireRole additionally gates on the identity's role. Admins pass every
// role gate.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if id.Role != role && id.Role != RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// FromContext extracts the authenticated identity, if any.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(ctxKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}
