package middleware

import (
	"net/http"
	"strings"

	"gcrp/internal/models"
	"gcrp/internal/services"
	"gcrp/pkg/jwt"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证与权限中间件
type AuthMiddleware struct {
	users       *services.UserService
	permissions *services.PermissionService
	jwtManager  *jwt.Manager
}

func NewAuthMiddleware(users *services.UserService, permissions *services.PermissionService, jwtManager *jwt.Manager) *AuthMiddleware {
	return &AuthMiddleware{
		users:       users,
		permissions: permissions,
		jwtManager:  jwtManager,
	}
}

// RequireLogin 要求登录。封禁用户在这里拦下，响应体带封禁原因。
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := m.verify(c)
		if !ok {
			return
		}

		user, err := m.users.GetByID(claims.UserID)
		if err != nil {
			response.Unauthorized(c, "User not found")
			c.Abort()
			return
		}
		if user.IsBanned {
			body := gin.H{"success": false, "message": "Account is banned"}
			if user.BanReason != nil {
				body["ban_reason"] = *user.BanReason
			}
			c.JSON(http.StatusForbidden, body)
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// OptionalLogin 可选登录：带有效令牌时填充上下文，否则匿名放行
func (m *AuthMiddleware) OptionalLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.Next()
			return
		}
		claims, err := m.jwtManager.VerifyToken(authHeader[7:])
		if err != nil {
			c.Next()
			return
		}
		user, err := m.users.GetByID(claims.UserID)
		if err != nil || user.IsBanned {
			c.Next()
			return
		}
		c.Set("user", user)
		c.Set("user_id", claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}

// RequirePermission 要求特定权限，须挂在RequireLogin之后
func (m *AuthMiddleware) RequirePermission(code string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		allowed, err := m.permissions.HasPermission(userID.(uint), code)
		if err != nil {
			response.HandleError(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAnyPermission 要求任意一个权限
func (m *AuthMiddleware) RequireAnyPermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			response.Unauthorized(c, "Authentication required")
			c.Abort()
			return
		}

		allowed, err := m.permissions.HasAnyPermission(userID.(uint), codes...)
		if err != nil {
			response.HandleError(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Forbidden(c, "Insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) verify(c *gin.Context) (*jwt.Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		response.Unauthorized(c, "Authentication required")
		c.Abort()
		return nil, false
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "Invalid authorization header")
		c.Abort()
		return nil, false
	}
	claims, err := m.jwtManager.VerifyToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Invalid or expired token")
		c.Abort()
		return nil, false
	}
	return claims, true
}

// CurrentUser 从上下文取当前登录用户
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get("user")
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// CurrentUserID 从上下文取当前登录用户ID
func CurrentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	id, ok := value.(uint)
	return id, ok
}
