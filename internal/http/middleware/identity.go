package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"safetalk.app/mediator/common/id"
	"safetalk.app/mediator/common/logger"
)

const (
	UserIDHeader = "X-User-ID"
	userIDKey    = "user_id"
)

// RequireUser reads the caller identity the gateway put in X-User-ID and
// aborts with 401 when it is missing or not a snowflake id.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserIDHeader})
			return
		}

		userID, err := id.Parse(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid " + UserIDHeader})
			return
		}

		c.Set(userIDKey, userID)
		ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{UserID: &userID})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// UserID returns the identity set by RequireUser.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	userID, ok := v.(int64)
	return userID, ok
}
