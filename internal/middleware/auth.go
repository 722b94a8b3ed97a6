package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	iutils "autobook/internal/utils"
	"autobook/pkg/utils"
)

const (
	// AuthorizationHeader authentication header name
	AuthorizationHeader = "Authorization"
	// BearerPrefix Bearer token prefix
	BearerPrefix = "Bearer "
	// UserIDKey context key for the authenticated user ID
	UserIDKey = "user_id"
	// UserEmailKey context key for the authenticated user email
	UserEmailKey = "user_email"
	// UserRoleKey context key for the authenticated user role
	UserRoleKey = "user_role"
	// TokenKey context key for the raw bearer token
	TokenKey = "token"
)

// TokenValidator validates a bearer token and returns its claims
type TokenValidator func(ctx context.Context, token string) (*iutils.JWTClaims, error)

// AuthConfig authentication configuration
type AuthConfig struct {
	// TokenValidator token validation function
	TokenValidator TokenValidator
	// SkipPaths paths that bypass authentication
	SkipPaths []string
	// RequiredRole role required to pass
	RequiredRole string
}

// Auth authentication middleware
func Auth(validator TokenValidator) gin.HandlerFunc {
	return AuthWithConfig(AuthConfig{
		TokenValidator: validator,
	})
}

// AuthWithConfig authentication middleware with configuration
func AuthWithConfig(config AuthConfig) gin.HandlerFunc {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	return func(c *gin.Context) {
		if skipPaths[c.Request.URL.Path] {
			c.Next()
			return
		}

		authHeader := c.GetHeader(AuthorizationHeader)
		if authHeader == "" {
			utils.Error(c, utils.CodeUnauthorized, "Missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			utils.Error(c, utils.CodeUnauthorized, "Invalid authorization header format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if token == "" {
			utils.Error(c, utils.CodeUnauthorized, "Missing token")
			c.Abort()
			return
		}

		claims, err := config.TokenValidator(c.Request.Context(), token)
		if err != nil {
			utils.Error(c, utils.CodeUnauthorized, "Invalid token")
			c.Abort()
			return
		}

		if config.RequiredRole != "" && claims.Role != config.RequiredRole {
			utils.Error(c, utils.CodeForbidden, "Insufficient permissions")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)
		c.Set(TokenKey, token)

		c.Next()
	}
}

// RequireRole authentication middleware requiring a specific role
func RequireRole(validator TokenValidator, role string) gin.HandlerFunc {
	return AuthWithConfig(AuthConfig{
		TokenValidator: validator,
		RequiredRole:   role,
	})
}

// OptionalAuth sets user context when a valid token is present but never rejects
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthorizationHeader)
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			c.Next()
			return
		}

		token := strings.TrimPrefix(authHeader, BearerPrefix)
		if token == "" {
			c.Next()
			return
		}

		claims, err := validator(c.Request.Context(), token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(UserEmailKey, claims.Email)
		c.Set(UserRoleKey, claims.Role)
		c.Set(TokenKey, token)
		c.Next()
	}
}

// GetUserID reads the authenticated user ID from the context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint64)
	return id, ok
}

// GetUserRole reads the authenticated user role from the context
func GetUserRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(UserRoleKey)
	if !exists {
		return "", false
	}

	roleStr, ok := role.(string)
	return roleStr, ok
}
