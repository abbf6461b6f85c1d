package handlers

import (
	"gcrp/internal/services"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// DiscordHandler Discord同步管理接口
type DiscordHandler struct {
	sync   *services.DiscordSyncService
	bridge *services.DiscordBridge
}

func NewDiscordHandler(sync *services.DiscordSyncService, bridge *services.DiscordBridge) *DiscordHandler {
	return &DiscordHandler{sync: sync, bridge: bridge}
}

// SyncUser 手动触发单个用户的身份组同步
func (h *DiscordHandler) SyncUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	h.sync.QueueRoleSync(userID)
	response.Message(c, "Role sync queued")
}

// SyncAll 全量触发身份组同步
func (h *DiscordHandler) SyncAll(c *gin.Context) {
	queued, err := h.sync.SyncAll()
	if err != nil {
		response.ServerError(c, "Failed to queue sync")
		return
	}
	response.Success(c, gin.H{
		"message": "Role sync queued",
		"queued":  queued,
	})
}

type DiscordBanRequest struct {
	Reason string `json:"reason" binding:"omitempty,max=512"`
}

// Ban 手动将用户的封禁推送到Discord
func (h *DiscordHandler) Ban(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req DiscordBanRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ValidationFailed(c, bindingErrors(err))
			return
		}
	}
	h.sync.QueueBan(userID, req.Reason)
	response.Message(c, "Ban queued")
}

// QueueStatus 队列积压状态
func (h *DiscordHandler) QueueStatus(c *gin.Context) {
	depth, err := h.sync.QueueDepth()
	if err != nil {
		response.ServerError(c, "Failed to read queue depth")
		return
	}
	response.Success(c, gin.H{
		"depth":   depth,
		"enabled": h.bridge.Enabled(),
	})
}

// ServerInfo Discord服务器概要
func (h *DiscordHandler) ServerInfo(c *gin.Context) {
	if !h.bridge.Enabled() {
		response.ServerError(c, "Discord integration is not configured")
		return
	}
	info, err := h.bridge.ServerInfo()
	if err != nil {
		response.ServerError(c, "Failed to fetch server info")
		return
	}
	response.Success(c, gin.H{"server": info})
}
