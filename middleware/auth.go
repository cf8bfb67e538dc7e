package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/studymon/server/cache"
	"github.com/studymon/server/config"
)

const UserIDKey = "user_id"

// SessionKey is the cache key marking token as logged in.
func SessionKey(token string) string { return "session:" + token }

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// Authenticate checks a token's signature and its cache session and returns
// the user id it was issued for.
func Authenticate(ctx context.Context, sec config.SecurityConfig, c cache.Cache, token string) (int64, bool) {
	claims, err := ParseToken(token, sec.JWTSecret)
	if err != nil {
		return 0, false
	}
	cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	exists, err := c.Exists(cacheCtx, SessionKey(token))
	if err != nil || !exists {
		return 0, false
	}
	return claims.UserID, true
}

// Auth validates the Bearer JWT and its cache session. With no JWT secret
// configured, auth is disabled and every request passes.
func Auth(sec config.SecurityConfig, c cache.Cache) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if sec.JWTSecret == "" {
			ctx.Next()
			return
		}
		token := BearerToken(ctx)
		if token == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "missing token"})
			return
		}
		userID, ok := Authenticate(ctx.Request.Context(), sec, c, token)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED", "message": "invalid or expired token"})
			return
		}
		ctx.Set(UserIDKey, userID)
		ctx.Next()
	}
}

// GetUserID returns the authenticated user id, or 0 when auth is disabled
// or the request is anonymous.
func GetUserID(c *gin.Context) int64 {
	if v, exists := c.Get(UserIDKey); exists {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
