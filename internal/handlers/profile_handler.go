package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gcrp/internal/middleware"
	"gcrp/internal/services"
	"gcrp/pkg/config"
	"gcrp/pkg/pagination"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProfileHandler 个人主页、资料编辑、社交与通知
type ProfileHandler struct {
	users         *services.UserService
	notifications *services.NotificationService
	activity      *services.ActivityService
	upload        config.UploadConfig
}

func NewProfileHandler(users *services.UserService, notifications *services.NotificationService, activity *services.ActivityService, upload config.UploadConfig) *ProfileHandler {
	return &ProfileHandler{
		users:         users,
		notifications: notifications,
		activity:      activity,
		upload:        upload,
	}
}

// GetByUsername 公开主页。登录用户额外返回是否已关注。
func (h *ProfileHandler) GetByUsername(c *gin.Context) {
	username := c.Param("username")
	user, err := h.users.GetByUsername(username)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	followers, following, err := h.users.FollowCounts(user.ID)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	body := gin.H{
		"user":      user,
		"followers": followers,
		"following": following,
	}
	if viewerID, ok := middleware.CurrentUserID(c); ok && viewerID != user.ID {
		isFollowing, err := h.users.IsFollowing(viewerID, user.ID)
		if err == nil {
			body["is_following"] = isFollowing
		}
	}
	response.Success(c, body)
}

type UpdateBioRequest struct {
	Bio string `json:"bio" binding:"max=1000"`
}

// UpdateBio 更新个人简介
func (h *ProfileHandler) UpdateBio(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req UpdateBioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	if err := h.users.UpdateBio(userID, req.Bio); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Bio updated")
}

// UploadAvatar 上传头像
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	h.uploadImage(c, "avatar", h.users.SetAvatar)
}

// UploadBanner 上传横幅
func (h *ProfileHandler) UploadBanner(c *gin.Context) {
	h.uploadImage(c, "banner", h.users.SetBanner)
}

// 允许的图片扩展名
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

func (h *ProfileHandler) uploadImage(c *gin.Context, field string, save func(uint, string) error) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	file, err := c.FormFile(field)
	if err != nil {
		response.BadRequest(c, fmt.Sprintf("Missing %s file", field))
		return
	}
	if file.Size > h.upload.MaxSizeMB*1024*1024 {
		response.BadRequest(c, fmt.Sprintf("File exceeds %dMB limit", h.upload.MaxSizeMB))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedImageExts[ext] {
		response.BadRequest(c, "Unsupported image format")
		return
	}
	if !isImageContentType(file) {
		response.BadRequest(c, "Unsupported image format")
		return
	}

	dir := filepath.Join(h.upload.Dir, field+"s")
	if err := os.MkdirAll(dir, 0755); err != nil {
		response.ServerError(c, "Failed to store file")
		return
	}
	filename := uuid.New().String() + ext
	if err := c.SaveUploadedFile(file, filepath.Join(dir, filename)); err != nil {
		response.ServerError(c, "Failed to store file")
		return
	}

	publicPath := path.Join(h.upload.PublicPath, field+"s", filename)
	if err := save(userID, publicPath); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"url": publicPath})
}

func isImageContentType(file *multipart.FileHeader) bool {
	contentType := file.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, "image/")
}

// ========== 关注关系 ==========

// Follow 关注用户
func (h *ProfileHandler) Follow(c *gin.Context) {
	followerID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.users.Follow(followerID, targetID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Followed")
}

// Unfollow 取消关注
func (h *ProfileHandler) Unfollow(c *gin.Context) {
	followerID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	targetID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.users.Unfollow(followerID, targetID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Unfollowed")
}

// Followers 粉丝列表
func (h *ProfileHandler) Followers(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.users.Followers(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"users": users})
}

// Following 关注列表
func (h *ProfileHandler) Following(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	users, err := h.users.Following(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"users": users})
}

// ========== 徽章与动态 ==========

// Badges 用户徽章（公开）
func (h *ProfileHandler) Badges(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	badges, err := h.users.Badges(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"badges": badges})
}

// UserActivity 某用户的最近动态（公开主页展示用）
func (h *ProfileHandler) UserActivity(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	logs, err := h.activity.Recent(userID, 50)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"activity": logs})
}

// ========== 通知 ==========

// Notifications 自己的通知分页列表，unread=true只看未读
func (h *ProfileHandler) Notifications(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	params := pagination.ParsePageParams(c)
	unreadOnly := c.Query("unread") == "true"

	items, total, err := h.notifications.ListWithPage(userID, unreadOnly, params.Page, params.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"notifications": items,
		"pagination": response.Pagination{
			Current: params.Page,
			Pages:   pagination.TotalPages(total, params.PageSize),
			Total:   total,
		},
	})
}

type MarkReadRequest struct {
	IDs []uint `json:"ids" binding:"required,min=1"`
}

// MarkNotificationsRead 批量标记已读。只影响自己的通知，
// 他人的通知ID被忽略。
func (h *ProfileHandler) MarkNotificationsRead(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	updated, err := h.notifications.MarkRead(userID, req.IDs)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"updated": updated})
}
