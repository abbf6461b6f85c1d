package services

import (
	"gcrp/internal/models"
	"gcrp/pkg/logger"
	"gcrp/pkg/queue"

	"gorm.io/gorm"
)

// DiscordSyncService 出站同步生产端。站内变更落库后把同步事件
// 写入Redis队列，由桥接端异步消费。入队失败只记日志，
// 绝不因为Discord侧的问题影响站内操作。
type DiscordSyncService struct {
	db    *gorm.DB
	queue *queue.RedisQueue
}

func NewDiscordSyncService(db *gorm.DB, q *queue.RedisQueue) *DiscordSyncService {
	return &DiscordSyncService{db: db, queue: q}
}

// QueueRoleSync 按用户当前角色集入队一次身份组重算。
// 未绑定Discord的用户直接跳过。
func (s *DiscordSyncService) QueueRoleSync(userID uint) {
	var user models.User
	if err := s.db.Preload("Roles").First(&user, userID).Error; err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", userID).
			Warn("角色同步入队失败：用户加载失败")
		return
	}
	if user.DiscordID == nil || *user.DiscordID == "" {
		return
	}

	roleIDs := make([]string, 0, len(user.Roles))
	for _, role := range user.Roles {
		if role.IsActive && role.DiscordRoleID != nil && *role.DiscordRoleID != "" {
			roleIDs = append(roleIDs, *role.DiscordRoleID)
		}
	}

	s.enqueue(&queue.SyncMessage{
		Event:     queue.EventSyncRoles,
		DiscordID: *user.DiscordID,
		RoleIDs:   roleIDs,
		UserID:    userID,
	})
}

// QueueBan 入队Discord服务器封禁
func (s *DiscordSyncService) QueueBan(userID uint, reason string) {
	discordID, ok := s.discordIDOf(userID)
	if !ok {
		return
	}
	s.enqueue(&queue.SyncMessage{
		Event:     queue.EventBan,
		DiscordID: discordID,
		Reason:    reason,
		UserID:    userID,
	})
}

// QueueUnban 入队解除Discord封禁
func (s *DiscordSyncService) QueueUnban(userID uint) {
	discordID, ok := s.discordIDOf(userID)
	if !ok {
		return
	}
	s.enqueue(&queue.SyncMessage{
		Event:     queue.EventUnban,
		DiscordID: discordID,
		UserID:    userID,
	})
}

// SyncAll 全量重算：为所有已绑定Discord的用户各入队一次角色同步
func (s *DiscordSyncService) SyncAll() (int, error) {
	var users []models.User
	if err := s.db.Where("discord_id IS NOT NULL AND discord_id <> ''").
		Find(&users).Error; err != nil {
		return 0, err
	}
	for _, user := range users {
		s.QueueRoleSync(user.ID)
	}
	return len(users), nil
}

// QueueDepth 队列积压数
func (s *DiscordSyncService) QueueDepth() (int64, error) {
	return s.queue.Depth()
}

func (s *DiscordSyncService) discordIDOf(userID uint) (string, bool) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		logger.GetLogger().WithError(err).WithField("user_id", userID).
			Warn("同步入队失败：用户加载失败")
		return "", false
	}
	if user.DiscordID == nil || *user.DiscordID == "" {
		return "", false
	}
	return *user.DiscordID, true
}

func (s *DiscordSyncService) enqueue(msg *queue.SyncMessage) {
	if err := s.queue.Enqueue(msg); err != nil {
		logger.GetLogger().WithError(err).WithFields(map[string]interface{}{
			"event":   msg.Event,
			"user_id": msg.UserID,
		}).Error("同步消息入队失败")
	}
}
