package services

import (
	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"

	"gorm.io/gorm"
)

// Notifier 通知投递抽象。工作流只依赖这个接口，投递失败
// 不得影响已经提交的业务写入。
type Notifier interface {
	Notify(userID uint, title, message, notifyType string) error
}

// NotificationService 站内通知，只追加；唯一的变更是归属人标记已读
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// Notify 给指定用户追加一条通知
func (s *NotificationService) Notify(userID uint, title, message, notifyType string) error {
	if notifyType == "" {
		notifyType = models.NotificationTypeInfo
	}

	notification := &models.Notification{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    notifyType,
	}

	if err := s.db.Create(notification).Error; err != nil {
		return apperrors.NewStorage(err)
	}
	return nil
}

// ListWithPage 用户的通知列表，创建时间倒序
func (s *NotificationService) ListWithPage(userID uint, unreadOnly bool, page, pageSize int) ([]*models.Notification, int64, error) {
	var notifications []*models.Notification
	var total int64

	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&notifications).Error
	if err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}

	return notifications, total, nil
}

// Unread 用户的全部未读通知，创建时间倒序
func (s *NotificationService) Unread(userID uint) ([]*models.Notification, error) {
	var notifications []*models.Notification
	err := s.db.Where("user_id = ? AND is_read = ?", userID, false).
		Order("created_at DESC, id DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return notifications, nil
}

// MarkRead 批量标记已读。WHERE子句按归属人限定，
// 混入他人通知ID时静默跳过，不会误改别人的数据。
func (s *NotificationService) MarkRead(userID uint, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", true)
	if result.Error != nil {
		return 0, apperrors.NewStorage(result.Error)
	}
	return result.RowsAffected, nil
}
