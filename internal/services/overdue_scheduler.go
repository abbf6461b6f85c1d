package services

import (
	"fmt"
	"time"

	"gcrp/internal/models"
	"gcrp/pkg/logger"

	"github.com/robfig/cron/v3"
)

// OverdueScheduler 定时扫描逾期申请，给指派的审核人发站内提醒。
// 每个申请只提醒一次，靠OverdueNotifiedAt去重。
type OverdueScheduler struct {
	applications *ApplicationService
	notifier     Notifier
	cron         *cron.Cron
}

func NewOverdueScheduler(applications *ApplicationService, notifier Notifier) *OverdueScheduler {
	return &OverdueScheduler{
		applications: applications,
		notifier:     notifier,
		cron:         cron.New(),
	}
}

// Start 启动每小时一次的逾期扫描
func (s *OverdueScheduler) Start() error {
	if _, err := s.cron.AddFunc("@hourly", s.ScanOnce); err != nil {
		return err
	}
	s.cron.Start()
	logger.GetLogger().Info("逾期申请扫描任务已启动")
	return nil
}

// Stop 停止定时任务
func (s *OverdueScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// ScanOnce 执行一次扫描。单个申请的提醒失败只记日志，不影响其余申请。
func (s *OverdueScheduler) ScanOnce() {
	now := time.Now()
	apps, err := s.applications.ListOverdue(now)
	if err != nil {
		logger.GetLogger().WithError(err).Error("逾期申请扫描失败")
		return
	}

	for _, app := range apps {
		if app.OverdueNotifiedAt != nil {
			continue
		}
		if app.AssignedTo == nil {
			continue
		}
		message := fmt.Sprintf("A %s application (#%d) has been pending for more than 7 days", app.Type, app.ID)
		if err := s.notifier.Notify(*app.AssignedTo, "Overdue application", message,
			models.NotificationTypeSystem); err != nil {
			logger.GetLogger().WithError(err).WithField("application_id", app.ID).
				Warn("逾期提醒发送失败")
			continue
		}
		if err := s.applications.MarkOverdueNotified(app.ID, now); err != nil {
			logger.GetLogger().WithError(err).WithField("application_id", app.ID).
				Warn("逾期提醒标记失败")
		}
	}
}
