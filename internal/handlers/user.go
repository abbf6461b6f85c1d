package handlers

import (
	"strconv"

	"gcrp/internal/middleware"
	"gcrp/internal/services"
	"gcrp/pkg/pagination"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler 后台用户管理
type UserHandler struct {
	users       *services.UserService
	roles       *services.RoleService
	permissions *services.PermissionService
}

func NewUserHandler(users *services.UserService, roles *services.RoleService, permissions *services.PermissionService) *UserHandler {
	return &UserHandler{users: users, roles: roles, permissions: permissions}
}

// List 用户分页列表，支持关键字/角色/封禁状态筛选
func (h *UserHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	filter := services.UserListFilter{
		Keyword: c.Query("keyword"),
		Role:    c.Query("role"),
		Status:  c.Query("status"),
	}

	users, total, err := h.users.ListWithPage(filter, params)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Success(c, gin.H{
		"users": users,
		"pagination": response.Pagination{
			Current: params.Page,
			Pages:   pagination.TotalPages(total, params.PageSize),
			Total:   total,
		},
	})
}

// Get 用户详情（带角色与有效权限集）
func (h *UserHandler) Get(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
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

	response.Success(c, gin.H{
		"user":        user,
		"permissions": codes,
	})
}

type BanRequest struct {
	Reason string `json:"reason" binding:"required,max=255"`
}

// Ban 封禁用户
func (h *UserHandler) Ban(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if actorID == userID {
		response.BadRequest(c, "Cannot ban yourself")
		return
	}

	if err := h.users.Ban(userID, req.Reason, &actorID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "User banned")
}

// Unban 解封用户
func (h *UserHandler) Unban(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if err := h.users.Unban(userID, &actorID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "User unbanned")
}

// Delete 删除用户
func (h *UserHandler) Delete(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if actorID == userID {
		response.BadRequest(c, "Cannot delete yourself")
		return
	}

	if err := h.users.Delete(userID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "User deleted")
}

type AssignRoleRequest struct {
	RoleID uint `json:"role_id" binding:"required"`
}

// AssignRole 给用户分配角色
func (h *UserHandler) AssignRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	actorID, _ := middleware.CurrentUserID(c)
	if err := h.roles.AssignRole(userID, req.RoleID, &actorID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Role assigned")
}

// RemoveRole 移除用户角色
func (h *UserHandler) RemoveRole(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	roleID, ok := parseIDParam(c, "role_id")
	if !ok {
		return
	}

	if err := h.roles.RemoveRole(userID, roleID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Role removed")
}

// Roles 用户的角色列表
func (h *UserHandler) Roles(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	roles, err := h.roles.RolesOfUser(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"roles": roles})
}

// Permissions 用户解析后的权限集合
func (h *UserHandler) Permissions(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	perms, err := h.permissions.GetUserPermissions(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"permissions": perms})
}

type AddBadgeRequest struct {
	Badge string `json:"badge" binding:"required,max=50"`
}

// AddBadge 授予徽章
func (h *UserHandler) AddBadge(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AddBadgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	if err := h.users.AddBadge(userID, req.Badge); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Badge added")
}

// RemoveBadge 移除徽章
func (h *UserHandler) RemoveBadge(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	badge := c.Param("badge")

	if err := h.users.RemoveBadge(userID, badge); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Badge removed")
}

// parseIDParam 解析路径中的数字ID，失败时直接写400响应
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}
