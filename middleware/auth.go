package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rabbitquest/models"
	"rabbitquest/services"
)

// Keys set on the gin context for authenticated requests.
const (
	ContextUserID = "user_id"
	ContextRoles  = "roles"
)

type TokenParser interface {
	ParseAccessToken(token string) (*services.AccessClaims, error)
}

// AuthMiddleware rejects requests without a valid bearer access token.
func AuthMiddleware(tokens TokenParser, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, userID, err := parse(tokens, raw)
		if err != nil {
			log.Debug("access token rejected", zap.Error(err), zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		setIdentity(c, claims, userID)
		c.Next()
	}
}

// OptionalAuth identifies the caller when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw, ok := bearerToken(c); ok {
			if claims, userID, err := parse(tokens, raw); err == nil {
				setIdentity(c, claims, userID)
			}
		}
		c.Next()
	}
}

// UserID returns the authenticated user id, if any.
func UserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

func HasRole(c *gin.Context, role string) bool {
	for _, r := range c.GetStringSlice(ContextRoles) {
		if r == role {
			return true
		}
	}
	return false
}

func IsAdmin(c *gin.Context) bool {
	return HasRole(c, models.RoleAdmin)
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func parse(tokens TokenParser, raw string) (*services.AccessClaims, uint, error) {
	claims, err := tokens.ParseAccessToken(raw)
	if err != nil {
		return nil, 0, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, 0, err
	}
	return claims, userID, nil
}

func setIdentity(c *gin.Context, claims *services.AccessClaims, userID uint) {
	c.Set(ContextUserID, userID)
	c.Set(ContextRoles, claims.Roles)
}
