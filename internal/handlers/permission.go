package handlers

import (
	"gcrp/internal/services"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// PermissionHandler 权限目录查询
type PermissionHandler struct {
	permissions *services.PermissionService
}

func NewPermissionHandler(permissions *services.PermissionService) *PermissionHandler {
	return &PermissionHandler{permissions: permissions}
}

// Catalog 权限目录，可按module筛选
func (h *PermissionHandler) Catalog(c *gin.Context) {
	permissions, err := h.permissions.ListCatalog(c.Query("module"))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"permissions": permissions})
}
