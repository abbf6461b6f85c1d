package handlers

import (
	"time"

	"gcrp/internal/middleware"
	"gcrp/internal/services"
	"gcrp/pkg/pagination"
	"gcrp/pkg/response"

	"github.com/gin-gonic/gin"
)

// ApplicationHandler 申请提交与审核
type ApplicationHandler struct {
	applications *services.ApplicationService
}

func NewApplicationHandler(applications *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

type SubmitApplicationRequest struct {
	Type       string `json:"type" binding:"required,oneof=new_member department_transfer role_upgrade custom"`
	Department string `json:"department" binding:"required,max=100"`
	Position   string `json:"position" binding:"required,max=100"`
	Content    string `json:"content" binding:"required,min=10"`
}

// Submit 提交申请
func (h *ApplicationHandler) Submit(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	var req SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	app, err := h.applications.Submit(userID, services.SubmitInput{
		Type:       req.Type,
		Department: req.Department,
		Position:   req.Position,
		Content:    req.Content,
	}, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		response.HandleError(c, err)
		return
	}

	response.Created(c, gin.H{
		"message":     "Application submitted",
		"application": app,
	})
}

// Mine 自己的申请列表
func (h *ApplicationHandler) Mine(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}

	apps, err := h.applications.ListByUser(userID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"applications": apps})
}

// Get 申请详情。申请人本人或有查看权限的用户可见。
func (h *ApplicationHandler) Get(c *gin.Context) {
	viewerID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	app, err := h.applications.Get(appID, viewerID)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"application": app})
}

type AddCommentRequest struct {
	Content    string `json:"content" binding:"required,min=1"`
	IsInternal bool   `json:"is_internal"`
}

// AddComment 添加评论
func (h *ApplicationHandler) AddComment(c *gin.Context) {
	authorID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	comment, err := h.applications.AddComment(appID, authorID, req.Content, req.IsInternal)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Created(c, gin.H{
		"message": "Comment added",
		"comment": comment,
	})
}

// ========== 管理端 ==========

// List 管理端申请分页列表
func (h *ApplicationHandler) List(c *gin.Context) {
	params := pagination.ParsePageParams(c)
	filter := services.ApplicationListFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
	}

	apps, total, err := h.applications.ListAll(filter, params)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"applications": apps,
		"pagination": response.Pagination{
			Current: params.Page,
			Pages:   pagination.TotalPages(total, params.PageSize),
			Total:   total,
		},
	})
}

type SetStatusRequest struct {
	Status string  `json:"status" binding:"required,oneof=pending under_review approved rejected on_hold"`
	Notes  *string `json:"notes" binding:"omitempty,max=1000"`
}

// SetStatus 变更申请状态
func (h *ApplicationHandler) SetStatus(c *gin.Context) {
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	app, err := h.applications.SetStatus(appID, actorID, req.Status, req.Notes)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"message":     "Status updated",
		"application": app,
	})
}

type AssignReviewerRequest struct {
	ReviewerID uint `json:"reviewer_id" binding:"required"`
}

// Assign 指派审核人
func (h *ApplicationHandler) Assign(c *gin.Context) {
	actorID, ok := middleware.CurrentUserID(c)
	if !ok {
		response.Unauthorized(c, "Authentication required")
		return
	}
	appID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AssignReviewerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationFailed(c, bindingErrors(err))
		return
	}

	if err := h.applications.AssignReviewer(appID, req.ReviewerID, actorID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.Message(c, "Reviewer assigned")
}

// Overdue 逾期申请列表
func (h *ApplicationHandler) Overdue(c *gin.Context) {
	apps, err := h.applications.ListOverdue(time.Now())
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"applications": apps})
}

// Stats 申请统计
func (h *ApplicationHandler) Stats(c *gin.Context) {
	stats, err := h.applications.Stats()
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, gin.H{"stats": stats})
}
