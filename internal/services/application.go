package services

import (
	"errors"
	"fmt"
	"time"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"
	"gcrp/pkg/logger"
	"gcrp/pkg/pagination"

	"gorm.io/gorm"
)

// ApplicationService 申请审核工作流
type ApplicationService struct {
	db          *gorm.DB
	permissions *PermissionService
	notifier    Notifier
	activity    *ActivityService
}

func NewApplicationService(db *gorm.DB, permissions *PermissionService, notifier Notifier, activity *ActivityService) *ApplicationService {
	return &ApplicationService{db: db, permissions: permissions, notifier: notifier, activity: activity}
}

// SubmitInput 提交申请入参
type SubmitInput struct {
	Type       string
	Department string
	Position   string
	Content    string
}

// Submit 提交申请。同类型已有未完结申请时拒绝，检查和写入在
// 同一事务内，避免并发重复提交。
func (s *ApplicationService) Submit(userID uint, input SubmitInput, ip, userAgent string) (*models.Application, error) {
	if !models.ValidApplicationType(input.Type) {
		return nil, apperrors.NewValidation("Invalid application type")
	}
	if input.Department == "" || input.Position == "" || input.Content == "" {
		return nil, apperrors.NewValidation("Department, position, and content are required")
	}

	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("User not found")
		}
		return nil, apperrors.NewStorage(err)
	}
	if user.IsBanned {
		return nil, apperrors.NewAuthorization("Banned users cannot submit applications")
	}

	app := &models.Application{
		UserID:     userID,
		Type:       input.Type,
		Department: input.Department,
		Position:   input.Position,
		Content:    input.Content,
		Status:     models.ApplicationStatusPending,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Application{}).
			Where("user_id = ? AND type = ? AND status IN ?", userID, input.Type,
				[]string{models.ApplicationStatusPending, models.ApplicationStatusUnderReview}).
			Count(&count).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		if count > 0 {
			return apperrors.NewConflict("You already have a pending application of this type")
		}
		if err := tx.Create(app).Error; err != nil {
			return apperrors.NewStorage(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.activity.Record(&userID, models.ActivityApplicationSubmit, map[string]interface{}{
		"application_id": app.ID,
		"type":           app.Type,
	}, ip, userAgent)
	return app, nil
}

// Get 获取申请详情。只有申请人本人或持有查看权限的用户可见；
// 内部评论在读取时按查看人身份过滤。
func (s *ApplicationService) Get(appID, viewerID uint) (*models.Application, error) {
	var app models.Application
	err := s.db.Preload("User").Preload("Reviewer").Preload("Assignee").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.Author").
		First(&app, appID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("Application not found")
	}
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}

	canView, err := s.permissions.HasPermission(viewerID, models.PermApplicationsView)
	if err != nil {
		return nil, err
	}
	if app.UserID != viewerID && !canView {
		return nil, apperrors.NewAuthorization("You do not have permission to view this application")
	}
	if !canView {
		visible := make([]models.ApplicationComment, 0, len(app.Comments))
		for _, c := range app.Comments {
			if !c.IsInternal {
				visible = append(visible, c)
			}
		}
		app.Comments = visible
	}
	return &app, nil
}

// SetStatus 变更申请状态。终态申请锁定；审批权限在写入前重新检查，
// 不信任中间件缓存的结果。状态落库后的通知和日志是尽力而为，
// 失败只记日志不回滚。
func (s *ApplicationService) SetStatus(appID, actorID uint, status string, notes *string) (*models.Application, error) {
	if !models.ValidApplicationStatus(status) {
		return nil, apperrors.NewValidation("Invalid status")
	}

	var app models.Application
	if err := s.db.First(&app, appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Application not found")
		}
		return nil, apperrors.NewStorage(err)
	}
	if app.IsTerminal() {
		return nil, apperrors.NewConflict("This application is locked and cannot be updated")
	}

	allowed, err := s.permissions.HasPermission(actorID, models.PermApplicationsApprove)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewAuthorization("Insufficient permissions")
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":      status,
		"reviewed_by": actorID,
		"reviewed_at": now,
	}
	if notes != nil {
		updates["review_notes"] = *notes
	}
	if err := s.db.Model(&app).Updates(updates).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}

	title := "Application status updated"
	message := fmt.Sprintf("Your %s application is now %s", app.Type, status)
	if err := s.notifier.Notify(app.UserID, title, message, models.NotificationTypeApplicationUpdate); err != nil {
		logger.GetLogger().WithError(err).WithField("application_id", app.ID).
			Warn("申请状态通知发送失败")
	}
	s.activity.Record(&actorID, models.ActivityApplicationStatus, map[string]interface{}{
		"application_id": app.ID,
		"status":         status,
	}, "", "")

	return s.loadApplication(appID)
}

// AddComment 添加评论。终态申请锁定。内部评论需要评论权限；
// 申请人只能发公开评论。审核人员的内部备注会通知申请人有新进展。
func (s *ApplicationService) AddComment(appID, authorID uint, content string, isInternal bool) (*models.ApplicationComment, error) {
	if content == "" {
		return nil, apperrors.NewValidation("Comment content is required")
	}

	var app models.Application
	if err := s.db.First(&app, appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NewNotFound("Application not found")
		}
		return nil, apperrors.NewStorage(err)
	}
	if app.IsTerminal() {
		return nil, apperrors.NewConflict("This application is locked and cannot be commented on")
	}

	canComment, err := s.permissions.HasPermission(authorID, models.PermApplicationsComment)
	if err != nil {
		return nil, err
	}
	isApplicant := app.UserID == authorID
	if !canComment && !(isApplicant && !isInternal) {
		return nil, apperrors.NewAuthorization("You do not have permission to comment on this application")
	}

	comment := &models.ApplicationComment{
		ApplicationID: appID,
		AuthorID:      authorID,
		Content:       content,
		IsInternal:    isInternal,
	}
	if err := s.db.Create(comment).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}

	if isInternal && !isApplicant {
		message := fmt.Sprintf("New comment on your %s application", app.Type)
		if err := s.notifier.Notify(app.UserID, "New application comment", message, models.NotificationTypeComment); err != nil {
			logger.GetLogger().WithError(err).WithField("application_id", app.ID).
				Warn("申请评论通知发送失败")
		}
	}
	return comment, nil
}

// AssignReviewer 指派审核人。不校验被指派人的权限，指派谁由
// 管理员自行负责；被指派人无审批权限时审批仍会被拒。
func (s *ApplicationService) AssignReviewer(appID, reviewerID uint, actorID uint) error {
	var app models.Application
	if err := s.db.First(&app, appID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("Application not found")
		}
		return apperrors.NewStorage(err)
	}
	if app.IsTerminal() {
		return apperrors.NewConflict("This application is locked and cannot be updated")
	}
	var reviewer models.User
	if err := s.db.First(&reviewer, reviewerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NewNotFound("User not found")
		}
		return apperrors.NewStorage(err)
	}
	if err := s.db.Model(&app).Update("assigned_to", reviewerID).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	if err := s.notifier.Notify(reviewerID, "Application assigned to you",
		fmt.Sprintf("A %s application has been assigned to you for review", app.Type),
		models.NotificationTypeApplicationUpdate); err != nil {
		logger.GetLogger().WithError(err).WithField("application_id", app.ID).
			Warn("审核指派通知发送失败")
	}
	return nil
}

// ListByUser 用户自己的申请列表
func (s *ApplicationService) ListByUser(userID uint) ([]*models.Application, error) {
	var apps []*models.Application
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return apps, nil
}

// ApplicationListFilter 管理端申请列表筛选
type ApplicationListFilter struct {
	Status string
	Type   string
}

// ListAll 管理端申请分页列表
func (s *ApplicationService) ListAll(filter ApplicationListFilter, params *pagination.PageParams) ([]*models.Application, int64, error) {
	query := s.db.Model(&models.Application{})
	if filter.Status != "" {
		if !models.ValidApplicationStatus(filter.Status) {
			return nil, 0, apperrors.NewValidation("Invalid status")
		}
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		if !models.ValidApplicationType(filter.Type) {
			return nil, 0, apperrors.NewValidation("Invalid application type")
		}
		query = query.Where("type = ?", filter.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	var apps []*models.Application
	err := query.Preload("User").Preload("Assignee").
		Order("created_at DESC").
		Offset(params.GetOffset()).Limit(params.GetLimit()).
		Find(&apps).Error
	if err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}
	return apps, total, nil
}

// ApplicationStats 申请状态统计
type ApplicationStats struct {
	Total       int64 `json:"total"`
	Pending     int64 `json:"pending"`
	UnderReview int64 `json:"under_review"`
	Approved    int64 `json:"approved"`
	Rejected    int64 `json:"rejected"`
	OnHold      int64 `json:"on_hold"`
	Overdue     int64 `json:"overdue"`
}

// Stats 申请统计
func (s *ApplicationService) Stats() (*ApplicationStats, error) {
	stats := &ApplicationStats{}
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := s.db.Model(&models.Application{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	for _, row := range rows {
		stats.Total += row.Count
		switch row.Status {
		case models.ApplicationStatusPending:
			stats.Pending = row.Count
		case models.ApplicationStatusUnderReview:
			stats.UnderReview = row.Count
		case models.ApplicationStatusApproved:
			stats.Approved = row.Count
		case models.ApplicationStatusRejected:
			stats.Rejected = row.Count
		case models.ApplicationStatusOnHold:
			stats.OnHold = row.Count
		}
	}
	cutoff := time.Now().Add(-models.OverdueThreshold)
	if err := s.db.Model(&models.Application{}).
		Where("status = ? AND created_at < ?", models.ApplicationStatusPending, cutoff).
		Count(&stats.Overdue).Error; err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return stats, nil
}

// ListOverdue 逾期申请：待处理且创建时间超过阈值
func (s *ApplicationService) ListOverdue(now time.Time) ([]*models.Application, error) {
	cutoff := now.Add(-models.OverdueThreshold)
	var apps []*models.Application
	err := s.db.Preload("User").Preload("Assignee").
		Where("status = ? AND created_at < ?", models.ApplicationStatusPending, cutoff).
		Order("created_at ASC").
		Find(&apps).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return apps, nil
}

// MarkOverdueNotified 标记逾期提醒已发送
func (s *ApplicationService) MarkOverdueNotified(appID uint, at time.Time) error {
	if err := s.db.Model(&models.Application{}).Where("id = ?", appID).
		Update("overdue_notified_at", at).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	return nil
}

func (s *ApplicationService) loadApplication(appID uint) (*models.Application, error) {
	var app models.Application
	err := s.db.Preload("User").Preload("Reviewer").First(&app, appID).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return &app, nil
}
