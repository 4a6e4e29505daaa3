package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/advieskamer/advies-backend/internal/platform/envutil"
)

const userIDKey = "request_user_id"

// defaultOperatorID is the owner applied when no X-User-ID header arrives.
// This service runs behind an authenticating proxy in multi-user setups and
// standalone for a single operator; either way every row gets an owner.
var defaultOperatorID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// AttachRequestUser resolves the acting user from the X-User-ID header, the
// OPERATOR_USER_ID env, or the built-in single-operator default.
func AttachRequestUser() gin.HandlerFunc {
	fallback := defaultOperatorID
	if raw := envutil.String("OPERATOR_USER_ID", ""); raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			fallback = id
		}
	}
	return func(c *gin.Context) {
		userID := fallback
		if raw := c.GetHeader("X-User-ID"); raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				userID = id
			}
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the acting user for this request.
func UserID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return defaultOperatorID
}

// RequestUserID is the string form for logging, "" when unset.
func RequestUserID(c *gin.Context) string {
	if v, ok := c.Get(userIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id.String()
		}
	}
	return ""
}
