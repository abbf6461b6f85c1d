package handlers

import (
	"gcrp/internal/middleware"
	"gcrp/internal/services"
	"gcrp/pkg/pagination"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// RoleHandler 角色管理
type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// PublicList 公开角色列表（仅启用角色，前端展示用）
func (h *RoleHandler) PublicList(c *gin.Context) {
	roles, err := h.roles.List(true)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"roles": roles})
}

// List 管理端角色列表（含停用角色）
func (h *RoleHandler) List(c *gin.Context) {
	roles, err := h.roles.List(false)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"roles": roles})
}

// Get 角色详情
func (h *RoleHandler) Get(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	role, err := h.roles.GetByID(roleID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"role": role})
}

type CreateRoleRequest struct {
	Name          string   `json:"name" binding:"required,min=2,max=50"`
	DisplayName   string   `json:"display_name" binding:"required,max=100"`
	Description   string   `json:"description" binding:"max=255"`
	Color         string   `json:"color" binding:"omitempty,hexcolor"`
	DiscordRoleID *string  `json:"discord_role_id" binding:"omitempty,numeric,max=32"`
	IsDefault     bool     `json:"is_default"`
	Priority      int      `json:"priority"`
	Permissions   []string `json:"permissions" binding:"omitempty,dive,permcode"`
}

// Create 创建角色
func (h *RoleHandler) Create(c *gin.Context) {
	var req CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}
	creatorID, _ := middleware.CurrentUserID(c)

	role, err := h.roles.Create(services.CreateRoleInput{
		Name:          req.Name,
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		Color:         req.Color,
		DiscordRoleID: req.DiscordRoleID,
		IsDefault:     req.IsDefault,
		Priority:      req.Priority,
		Permissions:   req.Permissions,
		CreatedBy:     &creatorID,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, gin.H{
		"message": "Role created",
		"role":    role,
	})
}

type UpdateRoleRequest struct {
	DisplayName   *string  `json:"display_name" binding:"omitempty,max=100"`
	Description   *string  `json:"description" binding:"omitempty,max=255"`
	Color         *string  `json:"color" binding:"omitempty,hexcolor"`
	DiscordRoleID *string  `json:"discord_role_id" binding:"omitempty,numeric,max=32"`
	Priority      *int     `json:"priority"`
	Permissions   []string `json:"permissions" binding:"omitempty,dive,permcode"`
}

// Update 更新角色
func (h *RoleHandler) Update(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	role, err := h.roles.Update(roleID, services.UpdateRoleInput{
		DisplayName:   req.DisplayName,
		Description:   req.Description,
		Color:         req.Color,
		DiscordRoleID: req.DiscordRoleID,
		Priority:      req.Priority,
		Permissions:   req.Permissions,
	})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message": "Role updated",
		"role":    role,
	})
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

// SetActive 启用/停用角色
func (h *RoleHandler) SetActive(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	if err := h.roles.SetActive(roleID, *req.IsActive); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Role updated")
}

// Delete 删除角色
func (h *RoleHandler) Delete(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.roles.Delete(roleID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Role deleted")
}

// SetDefault 设为默认角色
func (h *RoleHandler) SetDefault(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.roles.SetDefault(roleID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Default role updated")
}

type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"dive,permcode"`
}

// SetPermissions 整体替换角色的权限集。传空数组表示清空。
func (h *RoleHandler) SetPermissions(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}
	if req.Permissions == nil {
		req.Permissions = []string{}
	}

	role, err := h.roles.Update(roleID, services.UpdateRoleInput{Permissions: req.Permissions})
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message": "Role permissions updated",
		"role":    role,
	})
}

// Members 持有该角色的用户
func (h *RoleHandler) Members(c *gin.Context) {
	roleID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	params := pagination.ParsePageParams(c)

	users, total, err := h.roles.MembersOfRole(roleID, params)
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
