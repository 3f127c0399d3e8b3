package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MiddlewareParams contains the parameters for creating the auth middleware.
type MiddlewareParams struct {
	fx.In

	Service *Service
	Logger  *zap.Logger
}

// Middleware bundles the gateway's authentication routes (login, refresh)
// and gin middleware (bearer-token check, role gate) behind the Service.
type Middleware struct {
	service *Service
	logger  *zap.Logger
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(p MiddlewareParams) *Middleware {
	return &Middleware{service: p.Service, logger: p.Logger}
}

// LoginHandler returns the gin.HandlerFunc for POST /auth/login.
func (m *Middleware) LoginHandler() gin.HandlerFunc {
	return NewHandlers(m.service, m.logger).Login
}

// RefreshHandler returns the gin.HandlerFunc for POST /auth/refresh.
func (m *Middleware) RefreshHandler() gin.HandlerFunc {
	return NewHandlers(m.service, m.logger).RefreshToken
}

// AuthRequired rejects requests without a valid bearer token, otherwise
// populates user_id/username/role in the gin context.
func (m *Middleware) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := m.service.ValidateToken(parts[1])
		if err != nil {
			m.logger.Debug("auth: token rejected", zap.Error(err))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Set("role", claims.Role)
		c.Next()
	}
}

// AdminRequired gates a route group to the "admin" role. Must run after
// AuthRequired in the middleware chain.
func (m *Middleware) AdminRequired() gin.HandlerFunc {
	return RoleMiddleware("admin")
}

// RoleMiddleware gates a route group to callers whose token carries one of
// the given roles. Must run after AuthRequired.
func RoleMiddleware(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		c.Abort()
	}
}
