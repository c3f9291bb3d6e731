package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SvBorde/ResumeBooster/internal/auth"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_id"

const sessionTokenKey = "sessionToken"

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

// SessionMiddleware resolves the session cookie and injects the caller's
// user id into the context. Requests without a live session get 401.
func SessionMiddleware(sessions auth.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			abortUnauthorized(c)
			return
		}

		userID, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, auth.ErrSessionNotFound) {
				LoggerFromContext(c).Error("resolve session failed", "error", err)
			}
			abortUnauthorized(c)
			return
		}

		c.Set("userID", userID)
		c.Set(sessionTokenKey, token)
		c.Next()
	}
}

// SessionTokenFromContext returns the token the guard resolved, so logout can
// destroy exactly the session that authenticated the request.
func SessionTokenFromContext(c *gin.Context) string {
	if value, ok := c.Get(sessionTokenKey); ok {
		if token, ok := value.(string); ok {
			return token
		}
	}
	return ""
}
