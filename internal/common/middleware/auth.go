package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/open-builders/premium-backend/internal/common/errors"
)

const (
	AdminKeyHeader = "X-Admin-Key"
	AdminIDHeader  = "X-Admin-Id"
	ActorKey       = "actor"
	defaultActor   = "api"
)

// RequireAdminKey checks the shared admin secret. With allowQuery the key
// may also come from ?key=, for cron services that cannot set headers.
// An empty configured key rejects every request.
func RequireAdminKey(key string, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(AdminKeyHeader)
		if got == "" && allowQuery {
			got = c.Query("key")
		}
		if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			HandleError(c, errors.NewUnauthorizedError("missing or invalid admin key"))
			return
		}

		actor := strings.TrimSpace(c.GetHeader(AdminIDHeader))
		if actor == "" {
			actor = defaultActor
		}
		c.Set(ActorKey, actor)
		c.Next()
	}
}

// Actor returns the admin identity recorded in the action log.
func Actor(c *gin.Context) string {
	if v, ok := c.Get(ActorKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return defaultActor
}
