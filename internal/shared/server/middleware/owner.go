package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const ownerIDKey = "ownerId"

// Owner resolves the caller identity from X-Owner-Id. Unidentified callers
// share the "anonymous" owner.
func Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := strings.TrimSpace(c.GetHeader("X-Owner-Id"))
		if owner == "" {
			owner = "anonymous"
		}
		c.Set(ownerIDKey, owner)
		c.Next()
	}
}

// OwnerIDFromContext returns the owner stored by Owner.
func OwnerIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ownerIDKey)
}
