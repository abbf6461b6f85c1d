package handlers

import (
	"net/http"
	"strings"
	"time"

	"gcrp/internal/middleware"
	"gcrp/internal/services"
	"gcrp/pkg/jwt"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 注册、登录与会话
type AuthHandler struct {
	users         *services.UserService
	permissions   *services.PermissionService
	notifications *services.NotificationService
	applications  *services.ApplicationService
	jwtManager    *jwt.Manager
}

func NewAuthHandler(users *services.UserService, permissions *services.PermissionService,
	notifications *services.NotificationService, applications *services.ApplicationService,
	jwtManager *jwt.Manager) *AuthHandler {
	return &AuthHandler{
		users:         users,
		permissions:   permissions,
		notifications: notifications,
		applications:  applications,
		jwtManager:    jwtManager,
	}
}

type RegisterRequest struct {
	Username  string  `json:"username" binding:"required,min=3,max=50,alphanum"`
	Email     string  `json:"email" binding:"required,email,max=100"`
	Password  string  `json:"password" binding:"required,min=8,max=72"`
	DiscordID *string `json:"discord_id" binding:"omitempty,numeric,max=32"`
}

// Register 用户注册，成功后直接签发令牌
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	user, err := h.users.Register(services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		DiscordID: req.DiscordID,
	}, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.HandleError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		response.ServerError(c, "Failed to generate token")
		return
	}

	response.Created(c, gin.H{
		"message": "Registration successful",
		"token":   token,
		"user":    user,
	})
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 登录。username字段也接受邮箱。
// 封禁用户返回403，带封禁原因。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	user, err := h.users.Authenticate(req.Username, req.Password)
	if err != nil {
		if user != nil && user.IsBanned {
			body := gin.H{"success": false, "message": "Account is banned"}
			if user.BanReason != nil {
				body["ban_reason"] = *user.BanReason
			}
			c.JSON(http.StatusForbidden, body)
			return
		}
		response.HandleError(c, err)
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		response.ServerError(c, "Failed to generate token")
		return
	}

	// 登录时间更新失败不影响登录
	_ = h.users.UpdateLastLogin(user.ID, c.ClientIP(), c.Request.UserAgent())

	response.Success(c, gin.H{
		"message":    "Login successful",
		"token":      token,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
		"user":       user,
	})
}

// Logout 登出。JWT无服务端状态，前端丢弃令牌即可。
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Message(c, "Logout successful")
}

// RefreshToken 用仍然有效的令牌换发新令牌
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		response.Unauthorized(c, "Invalid authorization header")
		return
	}

	newToken, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Invalid or expired token")
		return
	}

	response.Success(c, gin.H{
		"token":      newToken,
		"expires_at": time.Now().Add(h.jwtManager.GetTokenDuration()).Unix(),
	})
}

// Me 当前登录用户信息：角色、有效权限集、未读通知和自己的申请
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	user, err := h.users.GetByID(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	codes, err := h.permissions.GetUserPermissions(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	unread, err := h.notifications.Unread(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	apps, err := h.applications.ListByUser(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"user":                 user,
		"permissions":          codes,
		"unread_notifications": unread,
		"applications":         apps,
	})
}
