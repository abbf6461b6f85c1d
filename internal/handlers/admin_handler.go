package handlers

import (
	"gcrp/internal/services"
	"gcrp/pkg/pagination"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// AdminHandler 后台仪表盘与审计日志
type AdminHandler struct {
	users    *services.UserService
	activity *services.ActivityService
}

func NewAdminHandler(users *services.UserService, activity *services.ActivityService) *AdminHandler {
	return &AdminHandler{users: users, activity: activity}
}

// Dashboard 仪表盘统计
func (h *AdminHandler) Dashboard(c *gin.Context) {
	stats, err := h.users.GetDashboardStats()
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"stats": stats})
}

// ActivityLog 全站操作日志分页列表，可按action筛选
func (h *AdminHandler) ActivityLog(c *gin.Context) {
	params := pagination.ParsePageParams(c)

	logs, total, err := h.activity.ListWithPage(c.Query("action"), params.Page, params.PageSize)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"activity": logs,
		"pagination": response.Pagination{
			Current: params.Page,
			Pages:   pagination.TotalPages(total, params.PageSize),
			Total:   total,
		},
	})
}
