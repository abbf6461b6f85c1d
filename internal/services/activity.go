package services

import (
	"encoding/json"

	"gcrp/internal/models"
	apperrors "gcrp/pkg/errors"
	"gcrp/pkg/logger"

	"gorm.io/gorm"
)

// ActivityService 行为审计，只追加。记录失败只打日志，
// 不影响触发它的业务操作。
type ActivityService struct {
	db *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{db: db}
}

// Record 追加一条审计记录
func (s *ActivityService) Record(userID *uint, action string, details map[string]interface{}, ip, userAgent string) {
	entry := &models.ActivityLog{
		UserID:    userID,
		Action:    action,
		IPAddress: ip,
		UserAgent: userAgent,
	}

	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			logger.GetLogger().Warnf("审计详情序列化失败: %v", err)
		} else {
			entry.Details = data
		}
	}

	if err := s.db.Create(entry).Error; err != nil {
		logger.GetLogger().Errorf("审计记录写入失败 action=%s: %v", action, err)
	}
}

// Recent 用户最近的行为记录，时间倒序
func (s *ActivityService) Recent(userID uint, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	var entries []*models.ActivityLog
	err := s.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, apperrors.NewStorage(err)
	}
	return entries, nil
}

// ListWithPage 全量审计流水（管理端）
func (s *ActivityService) ListWithPage(action string, page, pageSize int) ([]*models.ActivityLog, int64, error) {
	var entries []*models.ActivityLog
	var total int64

	query := s.db.Model(&models.ActivityLog{})
	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&entries).Error
	if err != nil {
		return nil, 0, apperrors.NewStorage(err)
	}

	return entries, total, nil
}
