package auth

import (
	"strings"

	"github.com/civitas-labs/issue-relay/internal/httperr"
	"github.com/civitas-labs/issue-relay/internal/logger"
	"github.com/gin-gonic/gin"
)

// Context keys for the authenticated user.
const (
	userIDKey    = "user_id"
	userEmailKey = "user_email"
)

// Middleware validates bearer tokens and attaches the owning user to the
// request context.
type Middleware struct {
	validator TokenValidator
}

func NewMiddleware(validator TokenValidator) *Middleware {
	return &Middleware{validator: validator}
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// no side effects.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httperr.AbortWithUnauthorized(c, "No token provided")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			httperr.AbortWithUnauthorized(c, "Authorization header must be a Bearer token")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == "" {
			httperr.AbortWithUnauthorized(c, "No token provided")
			return
		}

		info, err := m.validator.ExtractUserInfo(c.Request.Context(), token)
		if err != nil {
			httperr.AbortWithUnauthorized(c, "Invalid or expired token")
			return
		}

		// Attach the user to both gin and request context so logs pick it up.
		ctx := logger.WithUserID(c.Request.Context(), info.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(userIDKey, info.UserID)
		c.Set(userEmailKey, info.Email)

		c.Next()
	}
}

// GetUserID extracts the authenticated user ID from the gin context.
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok && id != ""
}
